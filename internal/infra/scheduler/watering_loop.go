// Package scheduler drives the periodic jobs of the bot: the watering decision loop and the
// cron based telemetry publisher.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"watering_notification_bot/internal/app"
	"watering_notification_bot/internal/domain/planting"
	"watering_notification_bot/internal/domain/sensor"
	"watering_notification_bot/internal/domain/user"
	"watering_notification_bot/internal/domain/watering"
	idb "watering_notification_bot/internal/infra/database"
)

const (
	DefaultPollInterval      = 60 * time.Second
	DefaultQuietHoursBackoff = 10 * time.Minute
)

// PlantingProcessor evaluates a single planting. Implemented by app.WateringService.
type PlantingProcessor interface {
	ProcessPlanting(ctx context.Context, p *planting.Planting) (*app.Outcome, error)
}

type WateringLoopConfig struct {
	Users     user.Repository
	Plantings planting.Repository
	Processor PlantingProcessor
	Interval  time.Duration
	Quiet     QuietHours
	Location  *time.Location
	Clock     func() time.Time
	// After defaults to time.After.
	After  func(time.Duration) <-chan time.Time
	Status *Status
	Logger *logrus.Entry
}

// WateringLoop polls every planting of every user, waits, and polls again until its context
// is cancelled.
type WateringLoop struct {
	users     user.Repository
	plantings planting.Repository
	processor PlantingProcessor
	interval  time.Duration
	quiet     QuietHours
	loc       *time.Location
	clock     func() time.Time
	after     func(time.Duration) <-chan time.Time
	status    *Status
	logger    *logrus.Entry
	state     atomic.Int32
}

func NewWateringLoop(cfg WateringLoopConfig) *WateringLoop {
	l := &WateringLoop{
		users:     cfg.Users,
		plantings: cfg.Plantings,
		processor: cfg.Processor,
		interval:  cfg.Interval,
		quiet:     cfg.Quiet,
		loc:       cfg.Location,
		clock:     cfg.Clock,
		after:     cfg.After,
		status:    cfg.Status,
		logger:    cfg.Logger,
	}
	if l.interval <= 0 {
		l.interval = DefaultPollInterval
	}
	if l.quiet.Backoff <= 0 {
		l.quiet.Backoff = DefaultQuietHoursBackoff
	}
	if l.loc == nil {
		l.loc = time.Local
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.after == nil {
		l.after = time.After
	}
	if l.status == nil {
		l.status = NewStatus()
	}
	if l.logger == nil {
		l.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	l.logger = l.logger.WithField("component", "watering_loop")
	return l
}

func (l *WateringLoop) State() State {
	return State(l.state.Load())
}

func (l *WateringLoop) Status() *Status {
	return l.status
}

func (l *WateringLoop) setState(s State) {
	l.state.Store(int32(s))
	l.status.setState(s)
}

// Run blocks until ctx is cancelled. Pass failures are logged and retried after the wait.
func (l *WateringLoop) Run(ctx context.Context) error {
	l.logger.WithFields(logrus.Fields{
		"interval":    l.interval,
		"quiet_hours": l.quiet.Enabled,
	}).Info("Starting watering loop")
	defer func() {
		l.setState(StateStopped)
		l.logger.Info("Watering loop stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		wait := l.interval
		if l.quiet.Active(l.clock().In(l.loc)) {
			l.logger.Debug("Quiet hours, skipping pass")
			l.status.recordPass(PassResult{StartedAt: l.clock(), FinishedAt: l.clock(), QuietHours: true}, nil)
			wait = l.quiet.Backoff
		} else {
			l.setState(StatePolling)
			if _, err := l.RunPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.logger.WithError(err).Error("Watering pass aborted")
			}
		}

		l.setState(StateWaiting)
		select {
		case <-ctx.Done():
			return nil
		case <-l.after(wait):
		}
	}
}

// RunPass evaluates every planting once. It returns an error only when the pass was aborted:
// enumeration failed, the store became unavailable, or ctx was cancelled.
func (l *WateringLoop) RunPass(ctx context.Context) (PassResult, error) {
	res := PassResult{ID: uuid.NewString(), StartedAt: l.clock()}
	log := l.logger.WithField("pass_id", res.ID)

	err := l.runPass(ctx, log, &res)
	res.FinishedAt = l.clock()
	res.Aborted = err != nil
	l.status.recordPass(res, err)

	log.WithFields(logrus.Fields{
		"plantings": res.Plantings,
		"notified":  res.Notified,
		"feedback":  res.Feedback,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
		"duration":  res.FinishedAt.Sub(res.StartedAt),
	}).Debug("Watering pass finished")
	return res, err
}

func (l *WateringLoop) runPass(ctx context.Context, log *logrus.Entry, res *PassResult) error {
	users, err := l.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	res.Users = len(users)

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		plantings, err := l.plantings.ListByUser(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("listing plantings of user %s: %w", u.ID, err)
		}

		for _, p := range plantings {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Plantings++
			out, err := l.processOne(ctx, p)
			if out != nil {
				if out.Notified {
					res.Notified++
				}
				if out.FeedbackSent {
					res.Feedback++
				}
			}
			if err == nil {
				continue
			}
			if errors.Is(err, idb.ErrPersistence) {
				return err
			}
			l.logPlantingError(log, p, err, res)
		}
	}
	return nil
}

func (l *WateringLoop) processOne(ctx context.Context, p *planting.Planting) (out *app.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic while processing planting %d: %v", p.ID, r)
		}
	}()
	return l.processor.ProcessPlanting(ctx, p)
}

func (l *WateringLoop) logPlantingError(log *logrus.Entry, p *planting.Planting, err error, res *PassResult) {
	log = log.WithFields(logrus.Fields{
		"user_id":     p.UserID,
		"plant_id":    p.PlantID,
		"device_id":   p.DeviceID,
		"planting_id": p.ID,
	}).WithError(err)

	switch {
	case errors.Is(err, app.ErrProfileNotFound):
		res.Skipped++
		log.Info("No watering profile for this month, skipping planting")
	case errors.Is(err, sensor.ErrReaderFailure), errors.Is(err, sensor.ErrInvalidChannel):
		res.Skipped++
		log.Warn("Moisture read failed, skipping planting this cycle")
	case errors.Is(err, watering.ErrInvalidProfile):
		res.Skipped++
		log.Warn("Watering profile cannot be interpreted, skipping planting")
	case errors.Is(err, app.ErrDispatchFailure):
		res.Failed++
		log.Warn("Notification not delivered, will retry next cycle")
	default:
		res.Failed++
		log.Error("Failed to process planting")
	}
}
