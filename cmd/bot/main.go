package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xaenox/worklog-bot/internal/bot"
	"github.com/xaenox/worklog-bot/internal/insights"
	"github.com/xaenox/worklog-bot/internal/mnemonic"
	"github.com/xaenox/worklog-bot/internal/monitor"
	"github.com/xaenox/worklog-bot/internal/storage"
	"github.com/xaenox/worklog-bot/internal/tracking"
	"github.com/xaenox/worklog-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize domain services
	tracker := tracking.NewService(store, logger)
	mnemonics := mnemonic.NewService(store)

	var summarizer *insights.Summarizer
	if cfg.OpenAI.Enabled {
		summarizer = insights.NewSummarizer(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		)
	}

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, store, tracker, mnemonics, summarizer, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the monitors
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	autoShutdown := monitor.NewAutoShutdown(store, store, cfg.Monitors.AutoShutdownInterval, logger)
	forgotShutdown := monitor.NewForgotShutdown(store, store, b, cfg.Monitors.ForgotShutdownInterval, logger)
	go autoShutdown.Run(ctx)
	go forgotShutdown.Run(ctx)

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
