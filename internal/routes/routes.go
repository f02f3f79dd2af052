package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"isp-agent-service/internal/auth"
	"isp-agent-service/internal/config"
	"isp-agent-service/internal/handlers"
	"isp-agent-service/internal/logging"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Chat         *handlers.ChatHandlers
	Stream       *handlers.StreamHandlers
	Conversation *handlers.ConversationHandlers
	App          *handlers.AppHandlers
	Webhook      *handlers.WebhookHandlers
	Admin        *handlers.AdminPushHandlers
	Wifi         *handlers.WifiHandlers

	JWT       *auth.JWTService
	RateLimit func(http.Handler) http.Handler
}

func NewRouter(cfg config.Config, logger logging.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)
	r.Use(handlers.WithRequestLogging(logger))
	r.Use(handlers.WithCORS(cfg))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Group(func(app chi.Router) {
			if h.RateLimit != nil {
				app.Use(h.RateLimit)
			}
			app.Post("/ai/chat", h.Chat.HandleChat)
			app.Post("/ai/chat/stream", h.Stream.HandleChatStream)
			app.Get("/ai/sessions/{id}/messages", h.Conversation.ListMessages)
			app.Post("/ai/telemetry", h.App.HandleTelemetry)
			app.Post("/devices/register", h.App.HandleRegisterDevice)
			app.Get("/wifi-config", h.Wifi.HandleGet)
			app.Post("/wifi-config", h.Wifi.HandleUpdate)
		})

		api.Get("/webhooks/sgp", h.Webhook.HandleSGPWebhook)
		api.Post("/webhooks/sgp", h.Webhook.HandleSGPWebhook)

		api.Group(func(admin chi.Router) {
			admin.Use(handlers.WithAdminAuth(h.JWT))
			admin.Post("/admin/push/send", h.Admin.HandleSend)
			admin.Post("/admin/push/schedule", h.Admin.HandleSchedule)
		})
	})

	return r
}
