// Package watering holds the watering policy: whether a reminder is due now, and whether a
// previous watering brought the soil to the expected reading.
package watering

import (
	"fmt"
	"time"

	"watering_notification_bot/internal/domain/notification"
	"watering_notification_bot/internal/domain/plant"
)

// DrierIsHigher fixes the sensor polarity: the raw ADC value rises as the soil dries.
// It is a calibration constant of the capacitive probe + MCP3008 wiring.
const DrierIsHigher = true

// Reason explains a should-notify decision. Used for logging and telemetry.
type Reason string

const (
	ReasonAlreadyNotifiedToday Reason = "already_notified_today"
	ReasonFirstReminder        Reason = "first_reminder"
	ReasonIntervalElapsed      Reason = "interval_elapsed"
	ReasonIntervalNotElapsed   Reason = "interval_not_elapsed"
	ReasonSoilDry              Reason = "soil_dry"
	ReasonSoilMoist            Reason = "soil_moist"
	ReasonNoReading            Reason = "no_reading"
)

// Decision is the result of ShouldNotify.
type Decision struct {
	Notify       bool
	Reason       Reason
	Mode         Mode // Zero when the same-day filter short-circuited
	IntervalDays int
	DaysSince    int // Only meaningful in ModeInterval with a previous reminder
}

// Engine evaluates the watering policy. It has no mutable state; all calendar arithmetic
// happens in its location.
type Engine struct {
	loc *time.Location
}

// NewEngine returns an engine judging calendar dates in loc (time.Local when nil).
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

// Location returns the engine's calendar location.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// ShouldNotify decides whether a watering reminder is due at now.
// humidity may be nil when no reading is available; lastWatering is the latest
// record of type watering, or nil.
func (e *Engine) ShouldNotify(profile *plant.Profile, now time.Time, humidity *int, lastWatering *notification.Record) (Decision, error) {
	if profile == nil {
		return Decision{}, fmt.Errorf("%w: missing profile", ErrInvalidProfile)
	}

	if lastWatering != nil && e.SameDay(lastWatering.SentAt, now) {
		return Decision{Notify: false, Reason: ReasonAlreadyNotifiedToday}, nil
	}

	schedule, err := ParseFrequency(profile.Frequency)
	if err != nil {
		return Decision{}, err
	}

	switch schedule.Mode {
	case ModeInterval:
		d := Decision{Mode: ModeInterval, IntervalDays: schedule.IntervalDays}
		if lastWatering == nil {
			d.Notify, d.Reason = true, ReasonFirstReminder
			return d, nil
		}
		// Negative when the clock went backwards; never due in that case.
		d.DaysSince = e.DaysBetween(lastWatering.SentAt, now)
		if d.DaysSince >= schedule.IntervalDays {
			d.Notify, d.Reason = true, ReasonIntervalElapsed
		} else {
			d.Reason = ReasonIntervalNotElapsed
		}
		return d, nil

	default:
		d := Decision{Mode: ModeMoisture}
		if humidity == nil {
			d.Reason = ReasonNoReading
			return d, nil
		}
		if IsDry(*humidity, profile.HumidityWhenDry) {
			d.Notify, d.Reason = true, ReasonSoilDry
		} else {
			d.Reason = ReasonSoilMoist
		}
		return d, nil
	}
}

// IsDry compares a raw reading to the dryness threshold using the fixed polarity.
func IsDry(humidity, threshold int) bool {
	if DrierIsHigher {
		return humidity >= threshold
	}
	return humidity <= threshold
}

// SameDay reports whether a and b fall on the same calendar date in the engine location.
func (e *Engine) SameDay(a, b time.Time) bool {
	return e.civilDate(a).Equal(e.civilDate(b))
}

// DaysBetween returns the calendar-date difference to - from in whole days.
func (e *Engine) DaysBetween(from, to time.Time) int {
	return int(e.civilDate(to).Sub(e.civilDate(from)) / (24 * time.Hour))
}

// civilDate maps t to midnight UTC of its local calendar date, so that subtraction is
// free of DST effects.
func (e *Engine) civilDate(t time.Time) time.Time {
	lt := t.In(e.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}
