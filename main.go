package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/classifier"
	"github.com/anichkay-yyy/client-pipeline/internal/collector"
	"github.com/anichkay-yyy/client-pipeline/internal/config"
	"github.com/anichkay-yyy/client-pipeline/internal/copygen"
	"github.com/anichkay-yyy/client-pipeline/internal/correlator"
	"github.com/anichkay-yyy/client-pipeline/internal/dedup"
	"github.com/anichkay-yyy/client-pipeline/internal/gateway"
	"github.com/anichkay-yyy/client-pipeline/internal/ingest"
	"github.com/anichkay-yyy/client-pipeline/internal/janitor"
	"github.com/anichkay-yyy/client-pipeline/internal/notifier"
	"github.com/anichkay-yyy/client-pipeline/internal/registry"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
	"github.com/anichkay-yyy/client-pipeline/internal/scheduler"
	"github.com/anichkay-yyy/client-pipeline/internal/scorer"
	"github.com/anichkay-yyy/client-pipeline/internal/server"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Initialize repositories
	channelRepo := repository.NewChannelRepository(db, logger)
	messageRepo := repository.NewMessageRepository(db, logger)
	leadRepo := repository.NewLeadRepository(db, logger)
	replyRepo := repository.NewReplyRepository(db, logger)
	budgetRepo := repository.NewBudgetRepository(db, logger)
	cursorRepo := repository.NewCursorRepository(db, logger)

	// Collaborator service clients
	gatewayClient := gateway.NewClient(
		cfg.Gateway.URL,
		time.Duration(cfg.Gateway.SendTimeout)*time.Second,
		cfg.Gateway.SendRatePerMinute,
		logger,
	)
	scorerClient := scorer.NewClient(cfg.Scorer.URL, time.Duration(cfg.Scorer.Timeout)*time.Second)
	copygenClient := copygen.NewClient(cfg.CopyGen.URL, logger)

	// Ingestion pipeline
	channelRegistry := registry.New(channelRepo, logger)
	dedupStore := dedup.NewStore(messageRepo, logger)
	gate := ingest.NewGate(channelRegistry, messageRepo, dedupStore, logger)

	collectorWorker := collector.NewWorker(
		gatewayClient,
		channelRegistry,
		channelRepo,
		gate,
		logger,
		time.Duration(cfg.Gateway.PollInterval)*time.Second,
	)

	classifierAdapter := classifier.NewAdapter(
		messageRepo,
		leadRepo,
		dedupStore,
		scorerClient,
		logger,
		cfg.Classification.MinRelevance,
		cfg.Classification.TargetStacks,
		time.Duration(cfg.Scorer.Timeout)*time.Second,
		time.Duration(cfg.Gateway.PollInterval)*time.Second,
	)

	// Operator notification bot (optional)
	bot, err := notifier.NewBot(
		cfg.Notifier.Enabled,
		cfg.Notifier.BotToken,
		cfg.Notifier.ChatID,
		leadRepo,
		channelRepo,
		messageRepo,
		budgetRepo,
		logger,
	)
	if err != nil {
		logger.Warn("Failed to initialize notifier bot, continuing without it", zap.Error(err))
		bot = nil
	}

	// Outreach scheduler
	outreachScheduler := scheduler.New(
		leadRepo,
		messageRepo,
		channelRepo,
		budgetRepo,
		gatewayClient,
		copygenClient,
		bot,
		logger,
		scheduler.Config{
			MaxSendsPerDay:   cfg.Outreach.MaxSendsPerDay,
			OutreachMinScore: cfg.Outreach.MinScore,
			MinDelay:         time.Duration(cfg.Outreach.MinDelaySeconds) * time.Second,
			MaxDelay:         time.Duration(cfg.Outreach.MaxDelaySeconds) * time.Second,
			MaxSendAttempts:  cfg.Outreach.MaxSendAttempts,
			PassInterval:     time.Duration(cfg.Outreach.PassInterval) * time.Second,
			SendTimeout:      time.Duration(cfg.Gateway.SendTimeout) * time.Second,
		},
	)

	// Reply correlation
	replyCorrelator := correlator.New(
		leadRepo,
		replyRepo,
		cursorRepo,
		gatewayClient,
		scorerClient,
		bot,
		logger,
		time.Duration(cfg.Replies.CheckInterval)*time.Second,
	)

	// Cleanup sweeps
	cleaner := janitor.New(leadRepo, channelRepo, logger, janitor.Config{
		Interval:        time.Duration(cfg.Janitor.Interval) * time.Second,
		ReplyTTL:        time.Duration(cfg.Replies.NoReplyTTLHours) * time.Hour,
		DeadChannelDays: cfg.Janitor.DeadChannelAgeDays,
	})

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run notifier bot in a goroutine (if enabled)
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Notifier bot failed", zap.Error(err))
			}
		}()
	}

	// Run pipeline workers
	go collectorWorker.Run(ctx)
	go classifierAdapter.Run(ctx)
	go outreachScheduler.Run(ctx)
	go replyCorrelator.Run(ctx)
	go cleaner.Run(ctx)

	// Initialize and run the operator API
	srv := server.NewServer(db, logger)
	srv.Run(":" + cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
