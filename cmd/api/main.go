package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/app"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/cache/redis"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/clock"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/config"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/metrics"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/notify"
	"github.com/Yoshida-JJJ/tc-app-sub001/internal/storage/postgres"
	transporthttp "github.com/Yoshida-JJJ/tc-app-sub001/internal/transport/http"
	"github.com/Yoshida-JJJ/tc-app-sub001/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", envOr("TCAPP_CONFIG", ""), "path to TOML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	metrics.Register()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		logger.Error("parse database dsn", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(startupCtx, poolCfg)
	if err != nil {
		logger.Error("connect to db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Error("db ping", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Database.RunMigrations {
		if err := migrations.Apply(startupCtx, pool); err != nil {
			logger.Error("apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Redis is an optional fast-path replay guard. Without it the workflow
	// still dedups through the store.
	var guard transporthttp.EventGuard
	if cfg.Redis.Addr != "" {
		client, err := redis.New(startupCtx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Error("connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer client.Close()
		guard = redis.NewEventGuard(client)
	}

	store := postgres.NewStore(pool)
	clk := clock.NewSystem()

	var notifier app.Notifier
	if cfg.Mail.APIKey != "" {
		mailer := notify.NewAPIMailer(cfg.Mail.APIURL, cfg.Mail.APIKey, cfg.Mail.From)
		notifier = notify.NewEmailNotifier(mailer, store, cfg.Mail.BaseURL, logger)
	} else {
		logger.Warn("mail api key not set, notifications disabled")
	}

	transferSvc := app.NewTransferService(store, clk, logger, notifier)
	reconcileSvc := app.NewReconcileService(store, clk, logger)
	fulfillmentSvc := app.NewFulfillmentService(store, reconcileSvc, clk, logger, notifier)
	itemSvc := app.NewItemService(store, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", transporthttp.HealthHandler)
	mux.Handle("GET /ready", transporthttp.HandleReady(pool))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("POST /webhooks/payments", transporthttp.HandlePaymentWebhook(
		transferSvc, guard,
		transporthttp.WebhookConfig{
			Secret:    cfg.Webhook.Secret,
			Tolerance: cfg.Webhook.Tolerance.Duration,
		},
		clk, logger,
	))
	mux.Handle("GET /orders/{id}", transporthttp.HandleGetOrder(fulfillmentSvc))
	mux.Handle("POST /orders/{id}/ship", transporthttp.HandleMarkShipped(fulfillmentSvc))
	mux.Handle("POST /orders/{id}/receive", transporthttp.HandleMarkReceived(fulfillmentSvc))
	mux.Handle("POST /orders/{id}/reconcile", transporthttp.HandleReconcileOrder(reconcileSvc))
	mux.Handle("POST /items/{id}/archive", transporthttp.HandleArchiveItem(itemSvc))
	mux.Handle("POST /items/{id}/restore", transporthttp.HandleRestoreItem(itemSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.Server.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: handler,
	}

	logger.Info("api listening", slog.String("port", cfg.Server.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
