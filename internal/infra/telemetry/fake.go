package telemetry

import (
	"context"
	"sync"

	domainTelemetry "watering_notification_bot/internal/domain/telemetry"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	Readings  []domainTelemetry.Reading
	Decisions []domainTelemetry.Decision

	// PublishError, if set, is returned by every publish call.
	PublishError error

	Closed bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishReading(_ context.Context, r domainTelemetry.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Readings = append(f.Readings, r)
	return nil
}

func (f *FakePublisher) PublishDecision(_ context.Context, d domainTelemetry.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Decisions = append(f.Decisions, d)
	return nil
}

// ReadingCount returns the number of recorded readings.
func (f *FakePublisher) ReadingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Readings)
}

func (f *FakePublisher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
}
