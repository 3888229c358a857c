package main

import (
	"context"
	"os"
	"time"

	"finman/internal/amqp"
	"finman/internal/cli"
	"finman/internal/config"
	"finman/internal/log"
	"finman/internal/notify"
	"finman/internal/services"
	gsheet "finman/internal/sheets/google"
	"finman/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(config.Load().LogLevel, log.ComponentWorker)
	logger.Info("Starting finman worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err, "url", cfg.AMQPURL)
		_ = repo.Close()
		os.Exit(1)
	}

	var (
		exporter  worker.Exporter
		processor *services.ExportProcessor
	)
	if cfg.GoogleSpreadsheetID != "" {
		sheets, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			_ = amqpClient.Close()
			_ = repo.Close()
			os.Exit(1)
		}
		exportConfig := services.DefaultExportProcessorConfig()
		exportConfig.PollInterval = cfg.SyncInterval
		processor = services.NewExportProcessor(repo, sheets, exportConfig, logger)
		exporter = processor
	} else {
		logger.Info("Sheet export disabled, GOOGLE_SPREADSHEET_ID not set")
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.DiscordBotToken != "" {
		discord, err := notify.NewDiscordNotifier(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			logger.Error("Failed to initialize Discord notifier", log.FieldError, err)
		} else {
			notifiers = append(notifiers, discord)
		}
	}
	if cfg.TelegramToken != "" {
		telegram, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Error("Failed to initialize Telegram notifier", log.FieldError, err)
		} else {
			notifiers = append(notifiers, telegram)
		}
	}

	settings := services.NewSettingsService(repo, cfg.DefaultCurrency)
	alerter := notify.NewBudgetAlerter(repo, repo, notifiers, func(ctx context.Context) string {
		prefs, err := settings.Get(ctx)
		if err != nil {
			return cfg.DefaultCurrency
		}
		return prefs.Currency
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if processor != nil {
			if err := processor.Stop(ctx); err != nil {
				logger.Error("Export processor shutdown error", log.FieldError, err)
			}
		}
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("SQLite close error", log.FieldError, err)
		}
	})

	if processor != nil {
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start export processor", log.FieldError, err)
			os.Exit(1)
		}
	}

	logger.Info("Worker ready",
		"queue", cfg.AMQPQueue,
		"sheets_enabled", processor != nil,
		"notifiers", len(notifiers))

	w := worker.NewEventWorker(repo, exporter, alerter, logger)
	if err := w.Run(ctx, amqpClient); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
