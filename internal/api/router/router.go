package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PKOOOO/whatsapp-ai-sdk/internal/channels/whatsapp"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/http/handlers"
	httpmiddleware "github.com/PKOOOO/whatsapp-ai-sdk/internal/http/middleware"
	"github.com/PKOOOO/whatsapp-ai-sdk/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Webhook            *whatsapp.WebhookHandler
	Dashboard          *handlers.DashboardHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhook, health, metrics).
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.Webhook != nil {
			public.Get("/webhook", cfg.Webhook.HandleVerification)
			public.Post("/webhook", cfg.Webhook.HandleEvent)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin dashboard, protected by HMAC JWT.
	if cfg.Dashboard != nil {
		r.Route("/dashboard", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			cfg.Dashboard.Routes(admin)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
