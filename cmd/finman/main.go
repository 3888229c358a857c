package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finman/internal/backend"
	"finman/internal/cache"
	"finman/internal/cli"
	"finman/internal/config"
	apphttp "finman/internal/http"
	"finman/internal/log"
	"finman/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)
	logger.Info("Starting finman server")

	cfg = cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	store := result.Backend

	// A nil *amqp.Client must not end up inside a non-nil interface.
	var publisher services.Publisher
	if result.Publisher != nil {
		publisher = result.Publisher
	}

	settings := services.NewSettingsService(store, cfg.DefaultCurrency)
	transactions := services.NewTransactionService(store, publisher, logger)
	budgets := services.NewBudgetService(store, logger)
	dashboard := services.NewDashboardService(store, store, settings, services.DashboardConfig{
		TrendMonths: cfg.TrendMonths,
		RecentCount: 5,
	}, logger)
	transactions.OnWrite(dashboard.Invalidate)
	budgets.OnWrite(dashboard.Invalidate)
	settings.OnWrite(dashboard.Invalidate)

	caches := cache.NewManager(logger)
	caches.Register(dashboard.Cache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Services{
		Transactions: transactions,
		Budgets:      budgets,
		Settings:     settings,
		Dashboard:    dashboard,
		Categories:   store,
		Store:        store,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Listening",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
