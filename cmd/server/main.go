// Atelier - bilingual garment manufacturer site server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/atelier/internal/api"
	"github.com/ashureev/atelier/internal/auth"
	"github.com/ashureev/atelier/internal/chat"
	"github.com/ashureev/atelier/internal/config"
	"github.com/ashureev/atelier/internal/identity"
	"github.com/ashureev/atelier/internal/livechat"
	"github.com/ashureev/atelier/internal/middleware"
	"github.com/ashureev/atelier/internal/retention"
	"github.com/ashureev/atelier/internal/site"
	"github.com/ashureev/atelier/internal/store"
	"github.com/ashureev/atelier/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "db_driver", cfg.DBDriver)

	// Initialize dependencies.
	repo, err := store.Open(cfg.DBDriver, cfg.DatabaseDSN(),
		store.WithRetry(cfg.Retry.DatabaseMaxRetries, cfg.Retry.DatabaseRetryBaseDelay))
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	renderer, err := site.NewRenderer(web.Templates())
	if err != nil {
		slog.Error("Failed to parse templates", "error", err)
		os.Exit(1)
	}

	// Completion backend is optional; without it chat replies fail with 503.
	var backend chat.Backend
	if cfg.Chat.Enabled() {
		backend = chat.NewOpenAIBackend(cfg.Chat)
		slog.Info("Chat completions enabled", "model", cfg.Chat.Model)
	} else {
		slog.Info("Chat completions disabled (OPENAI_API_KEY not set)")
	}
	chatService := chat.NewService(backend, cfg.Chat, cfg.Timeout.Completion)

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(repo)
	healthHandler := api.NewHealthHandler(baseHandler, cfg.Timeout.HealthCheck, chatService.Available)
	adminHandler := api.NewAdminHandler(baseHandler)
	chatHandler := chat.NewHandler(chatService, cfg, conversationLogger)
	defer chatHandler.Close()
	transcriptHandler := chat.NewTranscriptHandler(repo, cfg.Chat.TranscriptTTL, cfg.Chat.MaxRequestBodySize)

	wsLimiter := chat.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer wsLimiter.Stop()
	connManager := livechat.NewConnManager()
	wsHandler := livechat.NewHandler(chatService, connManager, wsLimiter, conversationLogger, cfg.FrontendURL, cfg.IsDevelopment())

	authManager := auth.NewManager(cfg.Admin, cfg.IsDevelopment())
	if !authManager.Enabled() {
		slog.Info("Admin area disabled (ADMIN_PASSWORD not set)")
	}
	siteHandler := site.NewHandler(repo, renderer, cfg.Chat.WhatsAppNumber)
	adminPages := site.NewAdminPages(repo, renderer, authManager.Enabled(), authManager.Authenticated)

	allowedOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(allowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/static/*", http.StripPrefix("/static", web.StaticHandler()))

	// Visitor-scoped chat API and websocket.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		chatHandler.RegisterRoutes(r)
		transcriptHandler.RegisterRoutes(r)
		r.Get("/ws/chat", wsHandler.ServeHTTP)
	})

	// Admin.
	r.Route("/api/auth", authManager.RegisterRoutes)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authManager.RequireAdmin)
		adminHandler.RegisterRoutes(r)
	})
	adminPages.RegisterRoutes(r, authManager.RequireAdmin)

	// Localized pages.
	siteHandler.RegisterRoutes(r)
	r.NotFound(siteHandler.NotFound)

	// Websocket connections need no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retentionDone := retention.Start(ctx, repo, retention.Config{
		Interval:      cfg.Retention.Interval,
		TranscriptTTL: cfg.Chat.TranscriptTTL,
		VisitorIdle:   cfg.Retention.VisitorIdle,
		MaxRetries:    cfg.Retry.DatabaseMaxRetries,
		RetryDelay:    cfg.Retry.DatabaseRetryBaseDelay,
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	connManager.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	<-retentionDone

	slog.Info("Server stopped successfully")
}
