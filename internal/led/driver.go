package led

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var (
	ErrClosed        = errors.New("led: transport closed")
	ErrShortTransfer = errors.New("led: short transfer")
	ErrFrameTooLarge = errors.New("led: frame exceeds bus transfer limit")
)

// Transport abstracts the bus the encoded frames are clocked out on.
type Transport interface {
	// Transmit sends frame as a single blocking transfer.
	Transmit(frame []byte) error
	// Close releases the bus. It is safe to call more than once.
	Close() error
	String() string
}

// Opener opens a Transport. Sessions call it once on start.
type Opener func() (Transport, error)

// DefaultSpeed clocks each SPI bit for 250ns, so one nibble spans a 1µs
// strip bit period.
const DefaultSpeed = 4 * physic.MegaHertz

// BusConfig holds the negotiated bus parameters.
type BusConfig struct {
	Device      string // e.g. /dev/spidev0.0, or "" for the first port
	Speed       physic.Frequency
	BitsPerWord int
	Mode        spi.Mode
}

// DefaultBusConfig matches a Raspberry Pi's first SPI port.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Device:      "/dev/spidev0.0",
		Speed:       DefaultSpeed,
		BitsPerWord: 8,
		Mode:        spi.Mode0,
	}
}

func (c BusConfig) withDefaults() BusConfig {
	if c.Speed <= 0 {
		c.Speed = DefaultSpeed
	}
	if c.BitsPerWord <= 0 {
		c.BitsPerWord = 8
	}
	return c
}

func (c BusConfig) String() string {
	return fmt.Sprintf("%s speed=%s bits=%d mode=%d", c.Device, c.Speed, c.BitsPerWord, c.Mode)
}
