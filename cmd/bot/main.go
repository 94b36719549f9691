package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"triagebot/internal/bot"
	"triagebot/internal/classifier"
	"triagebot/internal/issues"
	"triagebot/internal/notify"
	"triagebot/internal/observability"
	"triagebot/internal/router"
	"triagebot/internal/storage"
	"triagebot/internal/usage"
	"triagebot/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	shutdownTracing, err := observability.Setup(context.Background(), observability.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}, version)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("Failed to shut down tracing", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled {
		logger.Info("Tracing enabled", zap.String("otlp_endpoint", cfg.Telemetry.OTLPEndpoint))
	}

	// Initialize storage
	var store storage.Store
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

	// Usage tracker is shared by all concurrent classification calls
	tracker := usage.NewTracker()
	defer tracker.LogSummary(logger)

	clf := classifier.NewLLMClassifier(classifier.Config{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		Model:         cfg.OpenAI.Model,
		MaxTokens:     cfg.OpenAI.MaxTokens,
		Temperature:   cfg.OpenAI.Temperature,
		MaxAttempts:   cfg.Classifier.MaxAttempts,
		MaxToolRounds: cfg.Classifier.MaxToolRounds,
		HistoryLimit:  cfg.Classifier.HistoryLimit,
	}, tracker, logger)

	issueTracker, err := issues.New(issues.Type(cfg.Tracker.Type), cfg.Tracker.GitHubToken, cfg.Tracker.GitHubRepo, logger)
	if err != nil {
		logger.Fatal("Failed to configure issue tracker", zap.Error(err))
	}
	if issueTracker.Type() == issues.TypeNone {
		logger.Info("Issue tracking disabled, messages will be classified but no issues created")
	} else {
		logger.Info("Issue tracking enabled",
			zap.String("tracker", string(issueTracker.Type())),
			zap.String("repo", cfg.Tracker.GitHubRepo))
	}

	var notifier notify.Notifier
	if cfg.Notifications.Enabled {
		notifier = notify.NewDesktop()
	} else {
		logger.Info("Desktop notifications disabled")
		notifier = notify.NewNoop()
	}

	rtr := router.New(cfg.Classifier.ConfidenceThreshold, issueTracker.Type() != issues.TypeNone)
	processor := bot.NewProcessor(clf, rtr, notifier, issueTracker, store, logger)

	b, err := bot.New(cfg.Discord.Token, processor, store, cfg.Discord.GuildIDs, cfg.Discord.Workers, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting triage bot",
		zap.String("model", cfg.OpenAI.Model),
		zap.Float64("confidence_threshold", cfg.Classifier.ConfidenceThreshold))

	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
