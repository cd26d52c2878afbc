package sensor

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	domainSensor "watering_notification_bot/internal/domain/sensor"
)

// MCP3008 bus settings used by the capacitive probes.
const (
	MCP3008SpeedHz = 1350 * physic.KiloHertz
	mcp3008Bits    = 8
)

// txer is the part of spi.Conn the reader needs.
type txer interface {
	Tx(w, r []byte) error
}

// MCP3008Reader reads single-ended channels of an MCP3008 10-bit ADC over SPI.
type MCP3008Reader struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn txer
}

// OpenMCP3008 initialises the host drivers and opens the SPI port by name
// ("" selects the first available port, e.g. /dev/spidev0.0).
func OpenMCP3008(portName string) (*MCP3008Reader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", portName, err)
	}
	conn, err := port.Connect(MCP3008SpeedHz, spi.Mode0, mcp3008Bits)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi port %q: %w", portName, err)
	}
	return &MCP3008Reader{port: port, conn: conn}, nil
}

// CommandFor returns the 3-byte transaction requesting a single-ended read of channel:
// start bit, then SGL/DIFF=1 and the channel number in the high nibble.
func CommandFor(channel int) []byte {
	return []byte{1, byte((8 + channel) << 4), 0}
}

// DecodeReading extracts the 10-bit result from the response bytes.
func DecodeReading(r []byte) int {
	return int(r[1]&3)<<8 | int(r[2])
}

func (m *MCP3008Reader) Read(_ context.Context, channel int) (int, error) {
	if err := domainSensor.ValidateChannel(channel); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	read := make([]byte, 3)
	if err := m.conn.Tx(CommandFor(channel), read); err != nil {
		return 0, fmt.Errorf("%w: spi tx channel %d: %w", domainSensor.ErrReaderFailure, channel, err)
	}
	return DecodeReading(read), nil
}

func (m *MCP3008Reader) Close() error {
	if m.port == nil {
		return nil
	}
	return m.port.Close()
}
