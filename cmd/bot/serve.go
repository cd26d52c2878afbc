package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"

	"watering_notification_bot/internal/app"
	domainTelemetry "watering_notification_bot/internal/domain/telemetry"
	"watering_notification_bot/internal/domain/watering"
	"watering_notification_bot/internal/infra/classifier"
	idb "watering_notification_bot/internal/infra/database"
	"watering_notification_bot/internal/infra/guard"
	"watering_notification_bot/internal/infra/logger"
	"watering_notification_bot/internal/infra/scheduler"
	"watering_notification_bot/internal/infra/sensor"
	"watering_notification_bot/internal/infra/telegram"
	"watering_notification_bot/internal/infra/telemetry"
	"watering_notification_bot/internal/infra/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the watering loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before starting")
	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	mainLogger := logger.Component("main")
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()
	if migrate {
		if _, err := idb.Migrate(ctx, db, logger.Component("migrate")); err != nil {
			return err
		}
	}

	userRepo := idb.NewPostgresUserRepository(db)
	plantRepo := idb.NewPostgresPlantRepository(db)
	plantingRepo := idb.NewPostgresPlantingRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)

	profiles, err := app.LoadProfileStore(ctx, plantRepo)
	if err != nil {
		return err
	}
	mainLogger.WithField("profiles", profiles.Len()).Info("Watering profiles loaded")

	reader, err := sensor.Open(cfg.SensorDriver, cfg.SPIPort, cfg.SensorTimeout)
	if err != nil {
		return err
	}
	defer reader.Close()

	checks := map[string]web.HealthCheck{"database": db.PingContext}

	var dispatchGuard app.DispatchGuard = guard.NewMemoryGuard()
	if cfg.RedisAddr != "" {
		rdb, err := guard.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		dispatchGuard = guard.NewRedisGuard(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		mainLogger.WithField("addr", cfg.RedisAddr).Info("Using Redis dispatch guard")
	}

	var publisher domainTelemetry.Publisher = telemetry.NopPublisher{}
	if cfg.MQTTBroker != "" {
		mqttPub, err := telemetry.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			return err
		}
		publisher = mqttPub
		mainLogger.WithField("broker", cfg.MQTTBroker).Info("Publishing telemetry over MQTT")
	}
	defer publisher.Close()

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	})
	if err != nil {
		return err
	}

	wateringService := app.NewWateringService(app.WateringServiceConfig{
		Profiles:        profiles,
		Ledger:          notificationRepo,
		Reader:          reader,
		Sender:          telegram.NewTelebotAdapter(bot),
		Engine:          watering.NewEngine(loc),
		Guard:           dispatchGuard,
		Telemetry:       publisher,
		DispatchTimeout: cfg.DispatchTimeout,
		Logger:          logger.Component("watering"),
	})
	registrationService := app.NewRegistrationService(
		userRepo, plantRepo, plantingRepo,
		classifier.NewHTTPClient(cfg.ClassifierURL, cfg.ClassifierTimeout),
		logger.Component("registration"),
	)
	telegram.RegisterBotCommands(ctx, bot, registrationService, logger.Component("telegram"))

	status := scheduler.NewStatus()
	loop := scheduler.NewWateringLoop(scheduler.WateringLoopConfig{
		Users:     userRepo,
		Plantings: plantingRepo,
		Processor: wateringService,
		Interval:  cfg.PollInterval,
		Quiet: scheduler.QuietHours{
			Enabled: cfg.QuietHoursEnabled,
			Start:   cfg.QuietHoursStart,
			End:     cfg.QuietHoursEnd,
			Backoff: cfg.QuietHoursBackoff,
		},
		Location: loc,
		Status:   status,
		Logger:   logger.Component("scheduler"),
	})

	var telemetryScheduler *scheduler.TelemetryScheduler
	if cfg.MQTTBroker != "" {
		telemetryScheduler = scheduler.NewTelemetryScheduler(plantingRepo, reader, publisher, cfg.CronSpecTelemetry, loc, logger.Component("scheduler"))
		if err := telemetryScheduler.Start(); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	var statusServer *web.Server
	if cfg.HTTPAddress != "" {
		statusServer = web.New(cfg.HTTPAddress, web.Dependencies{
			Status:       status,
			Checks:       checks,
			AllowOrigins: cfg.HTTPAllowOrigins,
			Logger:       logger.Component("web"),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				mainLogger.WithError(err).Error("Status server failed")
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		bot.Start()
	}()
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()
	mainLogger.WithFields(logrus.Fields{
		"sensor_driver": cfg.SensorDriver,
		"timezone":      loc.String(),
		"poll_interval": cfg.PollInterval,
	}).Info("Application setup complete, bot and watering loop started")

	<-ctx.Done()
	mainLogger.Info("Shutting down application...")

	bot.Stop()
	if telemetryScheduler != nil {
		telemetryScheduler.Stop()
	}
	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Status server shutdown failed")
		}
	}
	wg.Wait()
	mainLogger.Info("Application shut down gracefully")
	return nil
}
