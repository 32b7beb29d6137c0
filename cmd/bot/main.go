package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"khatm_bot/internal/app"
	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/config"
	idb "khatm_bot/internal/infra/database"
	"khatm_bot/internal/infra/events"
	"khatm_bot/internal/infra/logger"
	"khatm_bot/internal/infra/memstore"
	"khatm_bot/internal/infra/metrics"
	"khatm_bot/internal/infra/quran"
	"khatm_bot/internal/infra/scheduler"
	"khatm_bot/internal/infra/telegram"
	"khatm_bot/internal/infra/txretry"
)

func main() {
	fmt.Println("Khatm Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"environment":       cfg.Environment,
		"storage_driver":    cfg.StorageDriver,
		"total_pages":       cfg.TotalPages,
		"on_cycle_complete": cfg.OnCycleComplete,
		"admin_id":          cfg.AdminTelegramID,
	}).Info("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	var collector metrics.Collector = metrics.Nop{}
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		collector = metrics.NewPrometheus(nil, "khatm")
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(nil))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				mainLogger.WithError(err).Error("Metrics server stopped")
			}
		}()
		mainLogger.WithField("addr", cfg.MetricsAddr).Info("Metrics endpoint listening")
	}

	// Storage
	repo, closeRepo, err := openRepository(cfg, collector)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not initialize khatm storage")
	}
	defer closeRepo()
	mainLogger.Info("Khatm repository initialized")

	// Events
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.ConnectNATS(cfg.NATSURL, logger.Component("events"))
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to NATS")
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		mainLogger.Info("NATS event publisher connected")
	}

	// Services
	khatmService := app.NewKhatmService(repo, cfg.TotalPages, cfg.OnCycleComplete, collector, publisher, logger.Component("khatm_service"))
	contentClient := quran.NewClient(cfg.QuranAPIBaseURL, cfg.QuranAPITimeout, logger.Component("quran_client"))
	readingService := app.NewReadingService(contentClient, logger.Component("reading_service"))
	auditService := app.NewAuditService(repo, collector, logger.Component("audit_service"))

	// Scheduler
	auditScheduler := scheduler.NewAuditScheduler(auditService, logger.Component("scheduler"), cfg.CronSpecAudit)
	if err := auditScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start audit scheduler")
	}

	// Telegram bot
	botLogger := logger.Component("telebot")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}

	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(ctx, bot, khatmService, cfg.AdminTelegramID, handlerLogger)
	telegram.RegisterReadingHandlers(ctx, bot, khatmService, readingService, telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, khatmService, auditService, cfg.AdminTelegramID, handlerLogger)
	mainLogger.Info("Telegram handlers registered")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.WithField("bot", bot.Me.Username).Info("Application setup complete, bot is polling")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	auditScheduler.Stop()
	cancel()
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Metrics server shutdown failed")
		}
		shutdownCancel()
	}
	mainLogger.Info("Application shut down gracefully")
}

// openRepository builds the store selected by STORAGE_DRIVER. The returned
// func releases its connection.
func openRepository(cfg *config.AppConfig, collector metrics.Collector) (khatm.Repository, func(), error) {
	policy := txretry.DefaultPolicy()
	policy.MaxAttempts = cfg.TxMaxAttempts
	policy.MaxElapsed = cfg.TxMaxElapsed
	runner := txretry.NewRunner(cfg.StorageDriver, policy, collector, logger.Component("txretry"))

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return idb.NewPostgresKhatmRepository(db, runner), func() { db.Close() }, nil
	case config.StorageSQLite:
		db, err := idb.NewSQLiteConnection(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return idb.NewSQLiteKhatmRepository(db, runner), func() { db.Close() }, nil
	case config.StorageMemory:
		logger.Component("main").Warn("Using in-memory storage, khatms are lost on restart")
		return memstore.NewKhatmStore(runner), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
