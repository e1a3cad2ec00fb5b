package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"helpdesk-service/internal/models"
	"helpdesk-service/internal/observability"
	"helpdesk-service/internal/repositories"
)

// handleSendTimeline persists a timeline entry and broadcasts the
// persisted row to every subscriber of the ticket's channel.
func (h *SocketHandler) handleSendTimeline(ctx context.Context, data json.RawMessage) error {
	var payload models.SendTimelinePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		observability.IncDroppedSubmit(models.EventSendTimeline, "bad_payload")
		return fmt.Errorf("%w: decode send-timeline: %v", errDropped, err)
	}
	if payload.Ticket == "" || payload.Title == "" {
		observability.IncDroppedSubmit(models.EventSendTimeline, "missing_field")
		return fmt.Errorf("%w: send-timeline with missing fields", errDropped)
	}

	mu := h.lockChannel(TicketChannel(payload.Ticket))
	mu.Lock()
	defer mu.Unlock()

	entry, err := h.timeline.AppendEntry(ctx, payload.Ticket, payload.Title, payload.Subtitle)
	if err != nil {
		return fmt.Errorf("persist timeline entry for %s: %w", payload.Ticket, err)
	}

	h.hub.Broadcast(TicketChannel(payload.Ticket), models.Envelope{Event: models.EventReceiveTimeline, Data: entry})
	return nil
}

// handleDeleteTimeline deletes an entry by id, then re-fetches the
// ticket's full timeline and broadcasts it as a fresh history event.
// Clients replace their whole view instead of reconciling a delta.
func (h *SocketHandler) handleDeleteTimeline(ctx context.Context, data json.RawMessage) error {
	var payload models.DeleteTimelinePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		observability.IncDroppedSubmit(models.EventDeleteTimeline, "bad_payload")
		return fmt.Errorf("%w: decode delete-timeline: %v", errDropped, err)
	}
	if payload.Ticket == "" || payload.ID <= 0 {
		observability.IncDroppedSubmit(models.EventDeleteTimeline, "missing_field")
		return fmt.Errorf("%w: delete-timeline with missing fields", errDropped)
	}

	// The delete, the refetch, and the full-replace broadcast form one
	// atomic step on the channel; an insert serialized after them can
	// never be erased from subscribers' views by a stale snapshot.
	mu := h.lockChannel(TicketChannel(payload.Ticket))
	mu.Lock()
	defer mu.Unlock()

	if err := h.timeline.DeleteEntry(ctx, payload.Ticket, payload.ID); err != nil {
		if !errors.Is(err, repositories.ErrEntryNotFound) {
			return fmt.Errorf("delete timeline entry %d for %s: %w", payload.ID, payload.Ticket, err)
		}
		// Already gone; the full-replace broadcast below still
		// reconciles every subscriber's view.
	}

	entries, err := h.timeline.ListEntries(ctx, payload.Ticket)
	if err != nil {
		return fmt.Errorf("reload timeline for %s: %w", payload.Ticket, err)
	}
	if entries == nil {
		entries = []models.TimelineEntry{}
	}

	h.hub.Broadcast(TicketChannel(payload.Ticket), models.Envelope{Event: models.EventTimelineHistory, Data: entries})
	return nil
}
