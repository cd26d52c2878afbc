// Package sensor provides moisture reader implementations: the MCP3008 ADC over SPI,
// plus fake and random readers for tests and demos.
package sensor

import (
	"fmt"
	"strings"
	"time"

	domainSensor "watering_notification_bot/internal/domain/sensor"
)

const (
	DriverMCP3008 = "mcp3008"
	DriverFake    = "fake"
	DriverRandom  = "random"
)

// Open builds the reader selected by driver and wraps it in a SerializedReader.
func Open(driver, port string, timeout time.Duration) (domainSensor.Reader, error) {
	var inner domainSensor.Reader
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMCP3008, "":
		r, err := OpenMCP3008(port)
		if err != nil {
			return nil, err
		}
		inner = r
	case DriverRandom:
		inner = NewRandomReader(uint64(time.Now().UnixNano()))
	case DriverFake:
		// Mid-scale readings on every channel.
		samples := make(map[int][]int, domainSensor.MaxChannel+1)
		for ch := domainSensor.MinChannel; ch <= domainSensor.MaxChannel; ch++ {
			samples[ch] = []int{512}
		}
		inner = NewFakeReader(samples)
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", driver)
	}
	return NewSerializedReader(inner, timeout), nil
}
