// Package sensor defines the soil moisture reader abstraction.
// Readings are raw 10-bit ADC values; on the reference hardware they rise as the soil dries.
package sensor

import (
	"context"
	"errors"
	"fmt"
)

const (
	MinChannel = 0
	MaxChannel = 7
	MaxReading = 1023
)

var (
	// ErrInvalidChannel is returned for channel ids outside [MinChannel, MaxChannel].
	ErrInvalidChannel = errors.New("invalid sensor channel")
	// ErrReaderFailure covers transient bus errors and read timeouts.
	ErrReaderFailure = errors.New("sensor read failed")
)

// Reader reads one analog channel.
type Reader interface {
	// Read returns the raw reading (0..1023) of channel. No retries happen here.
	Read(ctx context.Context, channel int) (int, error)

	// Close releases the underlying bus.
	Close() error
}

// ValidateChannel returns ErrInvalidChannel when channel is out of range.
func ValidateChannel(channel int) error {
	if channel < MinChannel || channel > MaxChannel {
		return fmt.Errorf("%w: %d (expected %d-%d)", ErrInvalidChannel, channel, MinChannel, MaxChannel)
	}
	return nil
}
