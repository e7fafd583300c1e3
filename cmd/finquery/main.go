package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finquery/finquery/internal/app"
	"github.com/finquery/finquery/internal/audit"
	"github.com/finquery/finquery/internal/auth"
	"github.com/finquery/finquery/internal/chat"
	"github.com/finquery/finquery/internal/identity"
	"github.com/finquery/finquery/internal/observability"
	"github.com/finquery/finquery/internal/platform/cache"
	"github.com/finquery/finquery/internal/platform/db"
	"github.com/finquery/finquery/internal/query"
	"github.com/finquery/finquery/internal/token"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	storePool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer storePool.Close()

	warehousePool, err := db.New(ctx, cfg.WarehouseDSN)
	if err != nil {
		logger.Error("connect warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer warehousePool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	identityRepo := identity.NewRepository(storePool)
	snapshotLoader := identity.NewSnapshotLoader(identityRepo, redisClient, cfg.SnapshotTTL, logger)

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.TokenLifetime)

	auditRepo := audit.NewRepository(storePool)
	auditRecorder := audit.NewRecorder(auditRepo, logger)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService)

	authService := auth.NewService(identityRepo)
	authHandler := auth.NewHandler(logger, authService, issuer, auditRecorder)
	authMiddleware := auth.Middleware{Issuer: issuer, Repo: identityRepo, Snapshot: snapshotLoader, Logger: logger}

	chatRepo := chat.NewRepository(storePool)
	chatService := chat.NewService(chatRepo)
	chatHandler := chat.NewHandler(logger, chatService)

	generator := query.NewLLMGenerator(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey)
	executor := query.NewWarehouseExecutor(warehousePool)
	queryService := query.NewService(generator, executor, auditRecorder, logger)
	queryHandler := query.NewHandler(logger, queryService, chatService)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		QueryHandler:   queryHandler,
		ChatHandler:    chatHandler,
		AuditHandler:   auditHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
