package sensor

import (
	"context"
	"math/rand/v2"
	"sync"

	domainSensor "watering_notification_bot/internal/domain/sensor"
)

// RandomReader returns uniformly distributed readings. Used for demos without hardware.
type RandomReader struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomReader returns a reader seeded with seed.
func NewRandomReader(seed uint64) *RandomReader {
	return &RandomReader{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomReader) Read(_ context.Context, channel int) (int, error) {
	if err := domainSensor.ValidateChannel(channel); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(domainSensor.MaxReading + 1), nil
}

func (r *RandomReader) Close() error { return nil }
