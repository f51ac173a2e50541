package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hatm_bot/internal/api"
	"hatm_bot/internal/app"
	"hatm_bot/internal/infra/config"
	idb "hatm_bot/internal/infra/database"
	"hatm_bot/internal/infra/logger"
	"hatm_bot/internal/infra/scheduler"
	"hatm_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	log := logger.Get().WithField("component", "main")
	log.Infof("Configuration loaded. Environment: %s, HTTP addr: %s", cfg.Environment, cfg.HTTPAddr)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Repositories
	userRepo := idb.NewPostgresUserRepository(db)
	groupRepo := idb.NewPostgresGroupRepository(db)
	hatmRepo := idb.NewPostgresHatmRepository(db)

	// Services
	baseLogger := logger.Get().WithField("app", "hatm_bot")
	userService := app.NewUserService(userRepo, baseLogger.WithField("service", "user"))
	groupService := app.NewGroupService(groupRepo, baseLogger.WithField("service", "group"))
	hatmService := app.NewHatmService(hatmRepo, userRepo, nil, baseLogger.WithField("service", "hatm"))

	// Telegram bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := baseLogger.WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.Fatalf("Could not create Telegram bot: %v", err)
	}

	// Notification pipeline
	notifier := telegram.NewNotifier(telegram.NewTelebotAdapter(bot))
	dispatcher := app.NewDispatcher(notifier, baseLogger.WithField("component", "dispatcher"), 0)
	dispatcher.Start()

	// Scheduler: expiry sweep and deadline reminders
	hatmScheduler := scheduler.NewHatmScheduler(
		hatmService,
		groupService,
		userService,
		dispatcher,
		baseLogger.WithField("component", "scheduler"),
		cfg.CronSpecExpiryCheck,
		cfg.CronSpecReminder,
		cfg.ReminderWindowDays,
	)
	if err := hatmScheduler.Start(); err != nil {
		log.Fatalf("Could not start scheduler: %v", err)
	}

	// Bot handlers
	botCtx, cancelBot := context.WithCancel(context.Background())
	defer cancelBot()
	telegram.RegisterBotHandlers(botCtx, bot, cfg, userService, hatmService, baseLogger.WithField("component", "bot"))
	go bot.Start()
	log.Info("Telegram bot started")

	// HTTP API for the mini app
	server := api.NewServer(userService, groupService, hatmService, dispatcher, baseLogger.WithField("component", "api"))
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(cfg),
	}
	go func() {
		log.Infof("HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	bot.Stop()
	cancelBot()
	hatmScheduler.Stop()
	dispatcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	log.Info("Application shut down gracefully")
}
