package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"helpdesk-service/internal/middleware"
	"helpdesk-service/internal/repositories"
)

// HistoryHandler serves the request/response initial-state reads. The
// realtime layer is an enhancement on top of these: a page loads its
// history here first, then the socket keeps it fresh.
type HistoryHandler struct {
	chats         repositories.ChatMessageRepository
	timeline      repositories.TimelineRepository
	notifications repositories.NotificationRepository
	historyLimit  int
}

// NewHistoryHandler builds a HistoryHandler.
func NewHistoryHandler(
	chats repositories.ChatMessageRepository,
	timeline repositories.TimelineRepository,
	notifications repositories.NotificationRepository,
	historyLimit int,
) *HistoryHandler {
	return &HistoryHandler{
		chats:         chats,
		timeline:      timeline,
		notifications: notifications,
		historyLimit:  historyLimit,
	}
}

// GetTicketMessages returns the full chat history of a ticket room.
// The ticket travels as a query parameter because ticket ids carry '#'
// and '/' characters.
func (h *HistoryHandler) GetTicketMessages(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ticket"})
		return
	}

	msgs, err := h.chats.ListMessages(c.Request.Context(), ticket)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetTicketTimeline returns the full timeline of a ticket.
func (h *HistoryHandler) GetTicketTimeline(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ticket"})
		return
	}

	entries, err := h.timeline.ListEntries(c.Request.Context(), ticket)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load timeline"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

// GetNotifications returns the recent notifications for the
// authenticated identity.
func (h *HistoryHandler) GetNotifications(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok || identity.Email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	ns, err := h.notifications.ListRecent(c.Request.Context(), identity.Email, h.historyLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": ns})
}

// Healthz reports database reachability.
func Healthz(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
