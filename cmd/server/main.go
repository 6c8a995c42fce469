package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/auth"
	"github.com/region23/sessionboard/internal/bot"
	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/internal/commands"
	"github.com/region23/sessionboard/internal/config"
	"github.com/region23/sessionboard/internal/scheduler"
	"github.com/region23/sessionboard/internal/scheduler/memory"
	"github.com/region23/sessionboard/internal/server"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/internal/storage"
	memorystore "github.com/region23/sessionboard/internal/storage/memory"
	"github.com/region23/sessionboard/internal/storage/sqlite"
	"github.com/region23/sessionboard/pkg/logger"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		os.Exit(commands.HashPassword(os.Args[2:]))
	}

	log := logger.Default()
	log.Info("Starting sessionboard", logger.String("version", version))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", logger.Error(err))
	}
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))
	log.Info("Configuration loaded successfully",
		logger.String("timezone", cfg.Schedule.Location.String()),
		logger.String("store", cfg.Database.Driver),
		logger.Bool("telegram", cfg.Telegram.Enabled()),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server error", logger.Error(err))
	}
	log.Info("Server stopped gracefully")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	repo := storage.NewRepository(kv, cfg.Schedule.Location)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Error closing storage", logger.Error(err))
		}
	}()
	log.Info("Storage initialized successfully", logger.String("driver", cfg.Database.Driver))

	engine := scheduler.NewEngine(ctx, repo, scheduler.EngineConfig{
		Template: cfg.Schedule.Template,
		Cutoff: scheduler.Cutoff{
			Weekday: cfg.Schedule.CutoffWeekday,
			Clock:   cfg.Schedule.CutoffTime,
		},
		Location: cfg.Schedule.Location,
		Logger:   log,
	})

	// Диспетчер создается после сервиса, а бот нужен раньше для напоминаний
	var dispatcher *bot.Dispatcher
	var telegramBot *tgbot.Bot
	var messenger *botservice.Service
	var reminders scheduler.NotificationScheduler

	if cfg.Telegram.Enabled() {
		telegramBot, err = tgbot.New(cfg.Telegram.Token,
			tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
				dispatcher.HandleUpdate(ctx, b, update)
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to create Telegram bot: %w", err)
		}
		log.Info("Telegram bot created successfully")

		messenger = botservice.NewService(telegramBot, cfg.Telegram.AdminIDs, log)
		memScheduler := memory.NewMemoryScheduler(messenger, log)
		if err := memScheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start reminder scheduler: %w", err)
		}
		defer memScheduler.Stop()
		reminders = memScheduler
	}

	board := service.New(engine, service.Options{
		Reminders:    reminders,
		ReminderLead: time.Duration(cfg.Schedule.ReminderMins) * time.Minute,
		PastLimit:    cfg.Schedule.PastLimit,
		UpcomingDays: cfg.Schedule.UpcomingDays,
		Logger:       log,
	})

	rollover, err := scheduler.NewRollover(engine, cfg.Schedule.RolloverCron, log)
	if err != nil {
		return err
	}
	rollover.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rollover.Stop(stopCtx)
	}()
	log.Info("Next week rollover", logger.Time("at", rollover.Next()))

	creds, err := auth.LoadCredentials(cfg.Auth.File, log)
	if err != nil {
		return err
	}

	opts := server.Options{
		Config:      cfg,
		Service:     board,
		Store:       repo,
		Credentials: creds,
		Logger:      log,
		Version:     version,
	}

	if telegramBot != nil {
		dispatcher = bot.NewDispatcher(board, messenger, log)
		defer dispatcher.Close()

		if cfg.Telegram.WebhookURL != "" {
			if err := setupWebhook(ctx, telegramBot, cfg.Telegram, log); err != nil {
				return fmt.Errorf("failed to setup webhook: %w", err)
			}
			opts.OnUpdate = func(ctx context.Context, update *tgmodels.Update) {
				dispatcher.HandleUpdate(ctx, telegramBot, update)
			}
		} else {
			if _, err := telegramBot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
				log.Warn("Failed to delete existing webhook", logger.Error(err))
			}
			log.Info("Starting Telegram long polling")
			go telegramBot.Start(ctx)
		}
	}

	return server.New(opts).Start(ctx)
}

// openStore открывает key-value хранилище выбранного драйвера
func openStore(cfg *config.Config) (storage.KeyValueStore, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return memorystore.New(), nil
	default:
		return sqlite.New(cfg.Database.Path)
	}
}

// setupWebhook настраивает webhook для Telegram бота
func setupWebhook(ctx context.Context, b *tgbot.Bot, cfg config.TelegramConfig, log *logger.Logger) error {
	if _, err := b.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		log.Warn("Failed to delete existing webhook", logger.Error(err))
	}

	params := &tgbot.SetWebhookParams{
		URL:         cfg.WebhookURL,
		SecretToken: cfg.SecretToken,
	}
	if _, err := b.SetWebhook(ctx, params); err != nil {
		return err
	}

	log.Info("Webhook configured successfully", logger.String("url", cfg.WebhookURL))
	return nil
}
