// newsdesk - conversational news summary server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/newsdesk/internal/agent"
	"github.com/ashureev/newsdesk/internal/api"
	"github.com/ashureev/newsdesk/internal/config"
	"github.com/ashureev/newsdesk/internal/health"
	"github.com/ashureev/newsdesk/internal/identity"
	"github.com/ashureev/newsdesk/internal/middleware"
	"github.com/ashureev/newsdesk/internal/search"
	"github.com/ashureev/newsdesk/internal/store"
	"github.com/ashureev/newsdesk/internal/stream"
	"github.com/ashureev/newsdesk/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.HistoryDSN)
	if err != nil {
		slog.Error("Failed to initialize history store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("History store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("History store ready")

	provider, err := search.New(cfg.Search.Provider, search.Options{
		BraveAPIKey:  cfg.Search.BraveAPIKey,
		TavilyAPIKey: cfg.Search.TavilyAPIKey,
		Timeout:      cfg.Search.Timeout,
	})
	if err != nil {
		slog.Error("Failed to initialize search provider", "error", err)
		os.Exit(1)
	}
	slog.Info("Search provider initialized", "provider", provider.Name())

	backend := agent.NewOpenAIBackend(agent.OpenAIConfig{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		MaxToolRounds: cfg.LLM.MaxToolRounds,
	}, logger)
	slog.Info("Inference backend initialized", "model", backend.Model(), "base_url", cfg.LLM.BaseURL)

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
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

	// Initialize services.
	orchestrator := agent.NewOrchestrator(backend, logger, search.NewTool(search.NewAdapter(provider, logger)))
	svc := agent.NewService(orchestrator, repo, conversationLogger)
	defer svc.Close()

	hub := stream.NewHub()

	// Initialize handlers.
	apiHandler := api.NewHandler(svc, repo, api.Info{Model: backend.Model(), SearchProvider: provider.Name()}, hub)
	wsHandler := stream.NewWebSocketHandler(svc, hub, cfg.AllowedOrigins, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	r.Route("/api", apiHandler.RegisterRoutes)

	// WebSocket endpoint.
	r.Get("/ws/summary", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// A summary run is two sequential model calls plus a web search, so
	// there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start idle session reaper.
	store.StartReaper(ctx, repo, cfg.SessionTTL)

	// Start optional gRPC health server.
	var healthSrv *health.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "error", err, "port", cfg.GRPCPort)
			os.Exit(1)
		}
		healthSrv = health.NewServer(repo)
		go healthSrv.Watch(ctx)
		go func() {
			if err := healthSrv.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

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

	if healthSrv != nil {
		healthSrv.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
