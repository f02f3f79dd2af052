package main

import (
	"context"
	"net/http"
	"time"

	"isp-agent-service/internal/auth"
	"isp-agent-service/internal/config"
	"isp-agent-service/internal/handlers"
	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/push"
	"isp-agent-service/internal/routes"
	"isp-agent-service/internal/services"
	"isp-agent-service/internal/sgp"
	"isp-agent-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.NewLogger(cfg.EffectiveLogLevel())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.AutoCreateDB, cfg.MaintenanceDB)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	pg := store.NewPostgresStore(db)
	if cfg.RunMigrations {
		if err := pg.Migrate(); err != nil {
			logger.WithError(err).Fatal("failed to migrate database")
		}
	}

	billing := sgp.New(cfg.SGPTimeout, logger)
	wifi := &services.WifiService{
		ACS:    services.GenieACSFactory(cfg.GenieACSNBIPort, logger),
		Store:  pg,
		Logger: logger,
	}
	chatSvc := &services.ChatService{
		Store:    pg,
		Model:    &services.OpenAIClient{BaseURL: cfg.OpenAIBaseURL, HTTP: &http.Client{Timeout: 60 * time.Second}},
		Settings: services.NewSettingsCatalog(pg, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.SettingsCacheTTL),
		Context:  &services.ContextBuilder{Billing: billing, Store: pg, Logger: logger},
		Tools:    services.NewToolbox(billing, wifi, logger),
		Logger:   logger,

		MaxToolTurns: cfg.MaxToolTurns,
		HistoryLimit: cfg.HistoryLimit,
		Retry: services.RetryConfig{
			MaxAttempts: cfg.ModelMaxAttempts,
			BaseDelay:   cfg.ModelRetryBaseDelay,
			MaxDelay:    cfg.ModelRetryMaxDelay,
		},
	}

	var sender push.Sender = push.DisabledSender{}
	if cfg.FirebaseCredentials != "" {
		fcm, err := push.NewFCMSender(context.Background(), cfg.FirebaseCredentials, logger)
		if err != nil {
			logger.WithError(err).Warn("push delivery disabled")
		} else {
			sender = fcm
		}
	} else {
		logger.Warn("FIREBASE_CREDENTIALS not set, push delivery disabled")
	}
	pushSvc := push.NewService(pg, sender, logger)

	rateLimit, err := handlers.WithRateLimit(handlers.NewRateLimitStore(ctx, cfg.RedisURL, logger), cfg.RateLimit)
	if err != nil {
		logger.WithError(err).Fatal("invalid RATE_LIMIT")
	}

	h := routes.NewRouter(cfg, logger, routes.Handlers{
		Chat:         &handlers.ChatHandlers{Chat: chatSvc, Logger: logger},
		Stream:       &handlers.StreamHandlers{Chat: chatSvc, Logger: logger},
		Conversation: &handlers.ConversationHandlers{Store: pg},
		App: &handlers.AppHandlers{
			Telemetry: &services.TelemetryService{Store: pg},
			Devices:   &services.DeviceService{Store: pg, Logger: logger},
			Logger:    logger,
		},
		Webhook:   &handlers.WebhookHandlers{Tenants: pg, Push: pushSvc, Logger: logger},
		Admin:     &handlers.AdminPushHandlers{Push: pushSvc, Schedules: pg, Logger: logger},
		Wifi:      &handlers.WifiHandlers{Store: pg, Wifi: wifi, Logger: logger},
		JWT:       auth.NewJWTService(cfg.AdminJWTSecret),
		RateLimit: rateLimit,
	})

	addr := ":" + cfg.Port
	logger.WithField("addr", addr).Info("isp-agent-service listening")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
