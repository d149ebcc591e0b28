package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sanziv9999/GharkoSwad/configs"
	"github.com/sanziv9999/GharkoSwad/internal/auth"
	"github.com/sanziv9999/GharkoSwad/internal/catalog"
	"github.com/sanziv9999/GharkoSwad/internal/db"
	"github.com/sanziv9999/GharkoSwad/internal/events"
	"github.com/sanziv9999/GharkoSwad/internal/handlers"
	"github.com/sanziv9999/GharkoSwad/internal/identity"
	"github.com/sanziv9999/GharkoSwad/internal/metrics"
	"github.com/sanziv9999/GharkoSwad/internal/notifier"
	"github.com/sanziv9999/GharkoSwad/internal/orders"
	"github.com/sanziv9999/GharkoSwad/internal/payments"
	"github.com/sanziv9999/GharkoSwad/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	serverCfg := config.LoadServerConfig()
	kafkaCfg := config.LoadKafkaConfig()
	paymentCfg := config.LoadPaymentConfig()

	db.Init()

	users := identity.NewGormLookup(db.DB)
	repo := repository.NewOrders(db.DB)
	m := metrics.New(prometheus.DefaultRegisterer)

	publisher := events.NewPublisher(kafkaCfg.Brokers, kafkaCfg.OrderTopic)
	if kp, ok := publisher.(*events.KafkaPublisher); ok {
		defer kp.Close()
		logger.Info("publishing order events", "brokers", kafkaCfg.Brokers, "topic", kafkaCfg.OrderTopic)
	}

	dispatcher := notifier.NewDispatcher(users, paymentCfg.Currency).
		WithSMS(notifier.NewSMSSender(config.LoadAfricaTalkingConfig()))
	if email, err := notifier.NewEmailSender(context.Background(), config.LoadEmailConfig()); err != nil {
		logger.Warn("email notifications disabled", "error", err)
	} else {
		dispatcher = dispatcher.WithEmail(email)
	}

	paySvc, err := payments.NewService(payments.Deps{
		Orders:   repo,
		Events:   publisher,
		Notifier: dispatcher,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("payment service init", "error", err)
		os.Exit(1)
	}

	orderSvc, err := orders.NewService(orders.Deps{
		Orders:   repo,
		Catalog:  catalog.NewGormLookup(db.DB),
		Identity: users,
		Payments: paySvc,
		Events:   publisher,
		Notifier: dispatcher,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("order service init", "error", err)
		os.Exit(1)
	}

	queries, err := orders.NewQueryService(repo)
	if err != nil {
		logger.Error("order query service init", "error", err)
		os.Exit(1)
	}

	gin.SetMode(serverCfg.GinMode)
	r := gin.Default()
	r.Use(m.Middleware())

	// ── session store ──
	store := cookie.NewStore([]byte(serverCfg.SessionSecret))
	r.Use(sessions.Sessions(auth.SessionName, store))

	// ── public endpoints ──
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ── order API ──
	handlers.NewOrderHandler(orderSvc, queries, paySvc, logger).
		Register(r.Group("/api/orders"), auth.RequireActor(users))

	logger.Info("starting server", "port", serverCfg.Port)
	if err := r.Run(":" + serverCfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
