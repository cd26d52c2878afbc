package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"watering_notification_bot/internal/domain/planting"
	"watering_notification_bot/internal/domain/sensor"
	"watering_notification_bot/internal/domain/telemetry"
)

const telemetryJobTimeout = 1 * time.Minute

// TelemetryScheduler publishes a moisture reading of every planting on a cron schedule,
// independently of the watering decisions.
type TelemetryScheduler struct {
	cronEngine *cron.Cron
	plantings  planting.Repository
	reader     sensor.Reader
	publisher  telemetry.Publisher
	cronSpec   string
	clock      func() time.Time
	logger     *logrus.Entry
}

func NewTelemetryScheduler(
	plantings planting.Repository,
	reader sensor.Reader,
	publisher telemetry.Publisher,
	cronSpec string, // e.g. "*/15 * * * *"
	loc *time.Location,
	logger *logrus.Entry,
) *TelemetryScheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &TelemetryScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		plantings:  plantings,
		reader:     reader,
		publisher:  publisher,
		cronSpec:   cronSpec,
		clock:      time.Now,
		logger:     logger.WithField("component", "telemetry_scheduler"),
	}
}

func (s *TelemetryScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryJobTimeout)
		defer cancel()
		n, err := s.PublishOnce(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Telemetry job failed")
			return
		}
		s.logger.WithField("published", n).Debug("Telemetry job finished")
	})
	if err != nil {
		return fmt.Errorf("adding telemetry cron job %q: %w", s.cronSpec, err)
	}
	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Telemetry scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (s *TelemetryScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Telemetry scheduler stopped")
}

// PublishOnce reads every planting and publishes the readings. Read and publish failures
// of single plantings are logged and skipped.
func (s *TelemetryScheduler) PublishOnce(ctx context.Context) (int, error) {
	plantings, err := s.plantings.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing plantings: %w", err)
	}

	published := 0
	for _, p := range plantings {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		log := s.logger.WithFields(logrus.Fields{"user_id": p.UserID, "plant_id": p.PlantID, "device_id": p.DeviceID})

		value, err := s.reader.Read(ctx, p.DeviceID)
		if err != nil {
			log.WithError(err).Warn("Telemetry read failed")
			continue
		}
		r := telemetry.Reading{UserID: p.UserID, PlantID: p.PlantID, DeviceID: p.DeviceID, Value: value, ReadAt: s.clock()}
		if err := s.publisher.PublishReading(ctx, r); err != nil {
			log.WithError(err).Warn("Telemetry publish failed")
			continue
		}
		published++
	}
	return published, nil
}
