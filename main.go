package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"helpdesk-service/internal/auth"
	"helpdesk-service/internal/config"
	"helpdesk-service/internal/db"
	"helpdesk-service/internal/handlers"
	"helpdesk-service/internal/middleware"
	"helpdesk-service/internal/observability"
	"helpdesk-service/internal/rabbitmq"
	"helpdesk-service/internal/repositories"
	"helpdesk-service/internal/telemetry"
	"helpdesk-service/internal/ws"
)

const serviceName = "helpdesk-service"

func main() {
	cfg := config.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()

	shutdownTracing, err := telemetry.InitTracing(context.Background(), cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}

	chatRepo := repositories.NewChatMessageRepo(database)
	timelineRepo := repositories.NewTimelineRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("noop_reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")

	if wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err == nil {
		observability.SetPublisher(wsPublisher)
		defer wsPublisher.Close()
	} else {
		logger.Warn().Err(err).Msg("ws lifecycle events disabled")
	}

	auditEmitter := telemetry.NewAuditEmitter(publisher, rabbitmq.RoutingKeyAudit, serviceName, cfg.Environment)

	verifier := auth.NewVerifier(cfg.TokenSecret)
	hub := ws.NewHub()
	socket := ws.NewSocketHandler(hub, chatRepo, timelineRepo, notificationRepo, verifier, publisher, logger, cfg.NotificationHistoryLimit)
	history := handlers.NewHistoryHandler(chatRepo, timelineRepo, notificationRepo, cfg.NotificationHistoryLimit)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestLogger(logger))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/history/messages", authMiddleware, history.GetTicketMessages)
	router.GET("/history/timeline", authMiddleware, history.GetTicketTimeline)
	router.GET("/notifications", authMiddleware, history.GetNotifications)

	router.GET("/ws", socket.Handle)

	router.GET("/healthz", handlers.Healthz(database))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	logger.Info().Str("port", cfg.Port).Msg("helpdesk realtime service listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
