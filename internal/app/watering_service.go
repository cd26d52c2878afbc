package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"watering_notification_bot/internal/domain/notification"
	"watering_notification_bot/internal/domain/plant"
	"watering_notification_bot/internal/domain/planting"
	"watering_notification_bot/internal/domain/sensor"
	domainTelegram "watering_notification_bot/internal/domain/telegram"
	"watering_notification_bot/internal/domain/telemetry"
	"watering_notification_bot/internal/domain/watering"
	idb "watering_notification_bot/internal/infra/database"
)

var (
	// ErrProfileNotFound means there is no profile for the plant in the current month.
	// Expected for plants without seasonal data; the planting is skipped.
	ErrProfileNotFound = errors.New("watering profile not found")
	// ErrDispatchFailure means the message could not be delivered. Nothing is written to the
	// ledger, so the next cycle retries.
	ErrDispatchFailure = errors.New("notification dispatch failed")
)

const (
	defaultDispatchTimeout = 10 * time.Second
	// GuardTTL outlives the calendar day the guard key is scoped to.
	GuardTTL = 36 * time.Hour
)

// DispatchGuard is a per-key "at most once" marker shared by every writer of watering
// reminders.
type DispatchGuard interface {
	// Acquire returns true when the key was free and is now held for ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ProfileLookup resolves the profile of a plant for a month.
type ProfileLookup interface {
	Get(plantID int64, month time.Month) (*plant.Profile, bool)
}

// GuardKey scopes a dispatch guard to one (user, plant, calendar day).
func GuardKey(userID string, plantID int64, day time.Time) string {
	return fmt.Sprintf("watering:guard:%s:%d:%s", userID, plantID, day.Format("2006-01-02"))
}

// WateringMessage is the reminder text.
func WateringMessage(plantName string, profile *plant.Profile) string {
	return fmt.Sprintf("%sの水やりが必要です。\n水やり頻度: %s\n水やり量: %s", plantName, profile.Frequency, profile.Amount)
}

// FeedbackMessage is the effectiveness feedback text.
func FeedbackMessage(plantName string, j *watering.Judgement) string {
	return plantName + ": " + j.Message
}

// Outcome summarises one ProcessPlanting call.
type Outcome struct {
	Humidity     int
	Decision     watering.Decision
	Notified     bool
	Judgement    *watering.Judgement
	FeedbackSent bool
}

// WateringServiceConfig groups the collaborators of WateringService.
// Guard, Telemetry and Clock are optional.
type WateringServiceConfig struct {
	Profiles        ProfileLookup
	Ledger          notification.Repository
	Reader          sensor.Reader
	Sender          domainTelegram.Client
	Engine          *watering.Engine
	Guard           DispatchGuard
	Telemetry       telemetry.Publisher
	Clock           func() time.Time
	DispatchTimeout time.Duration
	Logger          *logrus.Entry
}

// WateringService runs the per-planting step of the scheduler: read, decide, dispatch, record.
type WateringService struct {
	profiles        ProfileLookup
	ledger          notification.Repository
	reader          sensor.Reader
	sender          domainTelegram.Client
	engine          *watering.Engine
	guard           DispatchGuard
	telemetry       telemetry.Publisher
	clock           func() time.Time
	dispatchTimeout time.Duration
	logger          *logrus.Entry
}

func NewWateringService(cfg WateringServiceConfig) *WateringService {
	s := &WateringService{
		profiles:        cfg.Profiles,
		ledger:          cfg.Ledger,
		reader:          cfg.Reader,
		sender:          cfg.Sender,
		engine:          cfg.Engine,
		guard:           cfg.Guard,
		telemetry:       cfg.Telemetry,
		clock:           cfg.Clock,
		dispatchTimeout: cfg.DispatchTimeout,
		logger:          cfg.Logger,
	}
	if s.engine == nil {
		s.engine = watering.NewEngine(time.Local)
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.dispatchTimeout <= 0 {
		s.dispatchTimeout = defaultDispatchTimeout
	}
	if s.logger == nil {
		s.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return s
}

// ProcessPlanting evaluates one planting at the current time.
//
// Skips (no profile, reader failure, invalid profile) are returned as errors wrapping
// ErrProfileNotFound, sensor.ErrReaderFailure or watering.ErrInvalidProfile. Errors
// wrapping idb.ErrPersistence mean the store is unavailable.
func (s *WateringService) ProcessPlanting(ctx context.Context, p *planting.Planting) (*Outcome, error) {
	log := s.logger.WithFields(logrus.Fields{
		"user_id":   p.UserID,
		"plant_id":  p.PlantID,
		"device_id": p.DeviceID,
	})
	now := s.clock()
	month := now.In(s.engine.Location()).Month()

	profile, ok := s.profiles.Get(p.PlantID, month)
	if !ok {
		return nil, fmt.Errorf("%w: plant %d, month %d", ErrProfileNotFound, p.PlantID, month)
	}

	lastWatering, err := s.latest(ctx, p, notification.TypeWatering)
	if err != nil {
		return nil, err
	}

	humidity, err := s.reader.Read(ctx, p.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("reading channel %d: %w", p.DeviceID, err)
	}
	s.publishReading(ctx, log, p, humidity, now)

	decision, err := s.engine.ShouldNotify(profile, now, &humidity, lastWatering)
	if err != nil {
		return nil, fmt.Errorf("plant %d, month %d: %w", p.PlantID, month, err)
	}
	s.publishDecision(ctx, log, p, decision, humidity, now)

	out := &Outcome{Humidity: humidity, Decision: decision}
	log = log.WithFields(logrus.Fields{"humidity": humidity, "reason": decision.Reason})

	var errs []error
	if decision.Notify {
		sent, err := s.dispatchWatering(ctx, log, p, profile, humidity, now)
		out.Notified = sent
		if err != nil {
			errs = append(errs, err)
		}
	} else {
		log.Debug("No watering reminder due")
	}

	// The effectiveness check does not depend on the reminder above.
	judgement, sent, err := s.judgeEffectiveness(ctx, log, p, profile, humidity, now)
	out.Judgement, out.FeedbackSent = judgement, sent
	if err != nil {
		errs = append(errs, err)
	}

	return out, errors.Join(errs...)
}

func (s *WateringService) dispatchWatering(ctx context.Context, log *logrus.Entry, p *planting.Planting, profile *plant.Profile, humidity int, now time.Time) (bool, error) {
	key := GuardKey(p.UserID, p.PlantID, now.In(s.engine.Location()))
	held := false
	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, key, GuardTTL)
		switch {
		case err != nil:
			// The ledger check above still applies; only the cross-writer guard is lost.
			log.WithError(err).Warn("Dispatch guard unavailable, continuing without it")
		case !acquired:
			log.Info("Watering reminder already dispatched today by another writer")
			return false, nil
		default:
			held = true
		}
	}

	msg := WateringMessage(p.PlantName, profile)
	if err := s.send(ctx, p.UserID, msg); err != nil {
		if held {
			if errRelease := s.guard.Release(ctx, key); errRelease != nil {
				log.WithError(errRelease).Warn("Failed to release dispatch guard")
			}
		}
		return false, fmt.Errorf("%w: watering reminder: %w", ErrDispatchFailure, err)
	}

	rec := &notification.Record{
		UserID:   p.UserID,
		PlantID:  p.PlantID,
		Type:     notification.TypeWatering,
		Message:  msg,
		SentAt:   now,
		Humidity: sql.NullInt64{Int64: int64(humidity), Valid: true},
		DeviceID: sql.NullInt64{Int64: int64(p.DeviceID), Valid: true},
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		// The message is out; the guard stays held so today's reminder is not repeated.
		return true, fmt.Errorf("recording watering reminder: %w", err)
	}
	log.WithField("notification_id", rec.ID).Info("Watering reminder sent")
	return true, nil
}

func (s *WateringService) judgeEffectiveness(ctx context.Context, log *logrus.Entry, p *planting.Planting, profile *plant.Profile, humidity int, now time.Time) (*watering.Judgement, bool, error) {
	// Readings are only comparable on the same channel; same-day suppression above stays
	// per (user, plant).
	latest, err := s.latestOnDevice(ctx, p)
	if err != nil {
		return nil, false, err
	}
	j := s.engine.JudgeEffectiveness(profile, humidity, latest)
	if j == nil {
		return nil, false, nil
	}
	log = log.WithField("classification", j.Classification)

	msg := FeedbackMessage(p.PlantName, j)
	if err := s.send(ctx, p.UserID, msg); err != nil {
		return j, false, fmt.Errorf("%w: watering feedback: %w", ErrDispatchFailure, err)
	}

	rec := &notification.Record{
		UserID:   p.UserID,
		PlantID:  p.PlantID,
		Type:     notification.TypeWateringFeedback,
		Message:  msg,
		SentAt:   now,
		Humidity: sql.NullInt64{Int64: int64(humidity), Valid: true},
		DeviceID: sql.NullInt64{Int64: int64(p.DeviceID), Valid: true},
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		return j, true, fmt.Errorf("recording watering feedback: %w", err)
	}
	log.Info("Watering feedback sent")
	return j, true, nil
}

func (s *WateringService) send(ctx context.Context, userID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()
	return s.sender.SendMessage(ctx, userID, text)
}

func (s *WateringService) latest(ctx context.Context, p *planting.Planting, t notification.Type) (*notification.Record, error) {
	rec, err := s.ledger.Latest(ctx, p.UserID, p.PlantID, t)
	if errors.Is(err, idb.ErrNotificationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest %s notification: %w", t, err)
	}
	return rec, nil
}

func (s *WateringService) latestOnDevice(ctx context.Context, p *planting.Planting) (*notification.Record, error) {
	rec, err := s.ledger.LatestAnyOnDevice(ctx, p.UserID, p.PlantID, p.DeviceID)
	if errors.Is(err, idb.ErrNotificationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest notification: %w", err)
	}
	return rec, nil
}

func (s *WateringService) publishReading(ctx context.Context, log *logrus.Entry, p *planting.Planting, value int, now time.Time) {
	if s.telemetry == nil {
		return
	}
	r := telemetry.Reading{UserID: p.UserID, PlantID: p.PlantID, DeviceID: p.DeviceID, Value: value, ReadAt: now}
	if err := s.telemetry.PublishReading(ctx, r); err != nil {
		log.WithError(err).Debug("Failed to publish moisture reading")
	}
}

func (s *WateringService) publishDecision(ctx context.Context, log *logrus.Entry, p *planting.Planting, d watering.Decision, humidity int, now time.Time) {
	if s.telemetry == nil {
		return
	}
	ev := telemetry.Decision{
		UserID:    p.UserID,
		PlantID:   p.PlantID,
		Notify:    d.Notify,
		Reason:    string(d.Reason),
		Humidity:  &humidity,
		DecidedAt: now,
	}
	if d.Mode != 0 {
		ev.Mode = d.Mode.String()
	}
	if err := s.telemetry.PublishDecision(ctx, ev); err != nil {
		log.WithError(err).Debug("Failed to publish decision")
	}
}
