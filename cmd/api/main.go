package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/user/designaudit-service/internal/adapter/chromedp_render"
	"github.com/user/designaudit-service/internal/adapter/postgres"
	redis_adapter "github.com/user/designaudit-service/internal/adapter/redis"
	"github.com/user/designaudit-service/internal/adapter/sitemap"
	"github.com/user/designaudit-service/internal/colors"
	"github.com/user/designaudit-service/internal/delivery/http/handler"
	"github.com/user/designaudit-service/internal/delivery/http/router"
	"github.com/user/designaudit-service/internal/usecase"
	"github.com/user/designaudit-service/pkg/config"
	"github.com/user/designaudit-service/pkg/logger"
	"github.com/user/designaudit-service/pkg/metrics"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Unable to load configuration", "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger.Init(os.Stdout, logLevel)
	slog.Info("Logger initialized", "level", logLevel.String())

	// --- Metrics ---
	metrics.Init()
	slog.Info("Metrics initialized")

	// --- Database Connections ---
	ctx := context.Background()

	dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	slog.Info("PostgreSQL connection pool established")

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		slog.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("Redis connection established")

	// --- Repositories ---
	progressStore := redis_adapter.NewProgressStore(rdb)
	resultRepo := postgres.NewAuditResultRepo(dbpool)
	failedPageRepo := postgres.NewFailedPageRepo(dbpool)
	sessionFactory := chromedp_render.NewSessionFactory(cfg.BrowserPoolSize)
	collector := chromedp_render.NewCollector()
	mobileAuditor := chromedp_render.NewMobileAuditor()
	discovery := sitemap.NewDiscovery(nil)

	// --- Use Cases ---
	attempts := usecase.NewAttemptManager(
		sessionFactory,
		collector,
		mobileAuditor,
		cfg.TimeoutSchedule(),
		time.Duration(cfg.PollIntervalMS)*time.Millisecond,
		time.Duration(cfg.SettleDelayMS)*time.Millisecond,
		time.Duration(cfg.CMSSettleDelayMS)*time.Millisecond,
	)

	colorOpts := colors.DefaultOptions()
	colorOpts.MergeThreshold = cfg.ColorMergeThreshold
	colorOpts.FamilyThreshold = cfg.ColorFamilyThreshold

	audits := usecase.NewAuditOrchestrator(
		attempts,
		discovery,
		progressStore,
		resultRepo,
		failedPageRepo,
		colorOpts,
		time.Duration(cfg.DelayBetweenPagesMS)*time.Millisecond,
		cfg.MaxPages,
	)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(audits)
	httpRouter := router.New(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exited")
}
