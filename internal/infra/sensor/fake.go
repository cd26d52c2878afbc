package sensor

import (
	"context"
	"errors"
	"sync"

	domainSensor "watering_notification_bot/internal/domain/sensor"
)

// FakeReader is a test double that returns scripted readings per channel.
type FakeReader struct {
	mu sync.Mutex

	// Samples maps a channel to the readings returned by successive Read calls.
	// When exhausted, the last reading is returned repeatedly.
	Samples map[int][]int

	// ReadError, if set, is returned by Read for every channel.
	ReadError error

	// FailChannels lists channels whose reads fail with ErrReaderFailure.
	FailChannels map[int]bool

	// Closed tracks if Close was called
	Closed bool

	index map[int]int
	calls int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples map[int][]int) *FakeReader {
	if samples == nil {
		samples = map[int][]int{}
	}
	return &FakeReader{Samples: samples, FailChannels: map[int]bool{}, index: map[int]int{}}
}

func (f *FakeReader) Read(_ context.Context, channel int) (int, error) {
	if err := domainSensor.ValidateChannel(channel); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if f.FailChannels[channel] {
		return 0, domainSensor.ErrReaderFailure
	}

	samples := f.Samples[channel]
	if len(samples) == 0 {
		return 0, errors.Join(domainSensor.ErrReaderFailure, errors.New("no samples configured"))
	}
	if f.index == nil {
		f.index = map[int]int{}
	}
	i := f.index[channel]
	if i < len(samples)-1 {
		f.index[channel] = i + 1
	}
	return samples[i], nil
}

// Calls returns the number of Read calls so far.
func (f *FakeReader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
