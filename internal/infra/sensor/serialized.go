package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainSensor "watering_notification_bot/internal/domain/sensor"
)

// DefaultTimeout bounds one bus read including the wait for the bus lock.
const DefaultTimeout = time.Second

// SerializedReader lets one read at a time reach the wrapped reader and bounds each read
// with a timeout. Expiry and out-of-range values are reported as ErrReaderFailure.
// A read that never returns keeps the bus slot, and later callers time out waiting for it
// without starting goroutines of their own.
type SerializedReader struct {
	sem     chan struct{}
	inner   domainSensor.Reader
	timeout time.Duration
}

func NewSerializedReader(inner domainSensor.Reader, timeout time.Duration) *SerializedReader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SerializedReader{sem: make(chan struct{}, 1), inner: inner, timeout: timeout}
}

type readResult struct {
	value int
	err   error
}

func (s *SerializedReader) Read(ctx context.Context, channel int) (int, error) {
	if err := domainSensor.ValidateChannel(channel); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: channel %d: waiting for bus: %w", domainSensor.ErrReaderFailure, channel, ctx.Err())
	}

	done := make(chan readResult, 1)
	go func() {
		// The slot is held until the bus returns, even if the caller gave up.
		defer func() { <-s.sem }()
		v, err := s.inner.Read(ctx, channel)
		done <- readResult{value: v, err: err}
	}()

	select {
	case res := <-done:
		switch {
		case res.err == nil:
		case errors.Is(res.err, domainSensor.ErrInvalidChannel), errors.Is(res.err, domainSensor.ErrReaderFailure):
			return 0, res.err
		default:
			return 0, fmt.Errorf("%w: channel %d: %w", domainSensor.ErrReaderFailure, channel, res.err)
		}
		if res.value < 0 || res.value > domainSensor.MaxReading {
			return 0, fmt.Errorf("%w: channel %d: reading %d out of range", domainSensor.ErrReaderFailure, channel, res.value)
		}
		return res.value, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: channel %d: %w", domainSensor.ErrReaderFailure, channel, ctx.Err())
	}
}

func (s *SerializedReader) Close() error {
	return s.inner.Close()
}
