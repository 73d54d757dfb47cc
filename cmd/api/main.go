package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PKOOOO/whatsapp-ai-sdk/internal/api/router"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/botconfig"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/channels/whatsapp"
	appconfig "github.com/PKOOOO/whatsapp-ai-sdk/internal/config"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/conversation"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/http/handlers"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/observability/metrics"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/responder"
	"github.com/PKOOOO/whatsapp-ai-sdk/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp bot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	chatStore := conversation.NewStore(pool)
	settingsStore := botconfig.NewStore(pool)

	gateway := whatsapp.NewClient(cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppHTTPTimeout)
	if cfg.GraphAPIBaseURL != "" {
		gateway.SetBaseURL(cfg.GraphAPIBaseURL)
	}

	llm := responder.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, settingsStore)

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	processor := conversation.NewProcessor(conversation.ProcessorConfig{
		Store:     chatStore,
		Settings:  settingsStore,
		Responder: llm,
		Gateway:   gateway,
		Logger:    logger,
		Metrics:   webhookMetrics,
	})

	webhook := whatsapp.NewWebhookHandler(cfg.WhatsAppVerifyToken, processor.Process, logger)
	dashboard := handlers.NewDashboardHandler(chatStore, settingsStore, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Webhook:            webhook,
		Dashboard:          dashboard,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
