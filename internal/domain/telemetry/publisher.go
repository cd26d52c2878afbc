// Package telemetry describes the events the bot emits for dashboards and home automation.
package telemetry

import (
	"context"
	"time"
)

// Reading is one raw moisture sample of a planting.
type Reading struct {
	UserID   string    `json:"user_id"`
	PlantID  int64     `json:"plant_id"`
	DeviceID int       `json:"device_id"`
	Value    int       `json:"value"`
	ReadAt   time.Time `json:"read_at"`
}

// Decision is the outcome of one should-notify evaluation.
type Decision struct {
	UserID    string    `json:"user_id"`
	PlantID   int64     `json:"plant_id"`
	Notify    bool      `json:"notify"`
	Reason    string    `json:"reason"`
	Mode      string    `json:"mode,omitempty"`
	Humidity  *int      `json:"humidity,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Publisher sends telemetry events. Delivery is best effort.
type Publisher interface {
	PublishReading(ctx context.Context, r Reading) error
	PublishDecision(ctx context.Context, d Decision) error
	Close()
}
