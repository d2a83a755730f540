package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/neospi/internal/led"
)

type SPI struct {
	Dev     string `yaml:"dev"`      // e.g. /dev/spidev0.0
	SpeedHz int    `yaml:"speed_hz"` // e.g. 4000000
	ResetUs int    `yaml:"reset_us"` // e.g. 100
}

type Config struct {
	Driver   string `yaml:"driver"`  // "spi" | "spidev" | "sim"
	LEDs     int    `yaml:"leds"`    // pixels on the strip
	Variant  string `yaml:"variant"` // "ws2812b" | "sk6812rgbw"
	Effect   string `yaml:"effect"`
	FrameMs  int    `yaml:"frame_ms"`
	Seed     uint64 `yaml:"seed,omitempty"`
	Realtime bool   `yaml:"realtime"`
	Priority int    `yaml:"priority,omitempty"`
	Addr     string `yaml:"addr,omitempty"` // preview server, off when empty

	SPI SPI `yaml:"spi"`
}

// Default mirrors the stock eight pixel strip on /dev/spidev0.0.
func Default() Config {
	return Config{
		Driver:   "spi",
		LEDs:     8,
		Variant:  "ws2812b",
		Effect:   "show",
		FrameMs:  100,
		Priority: 99,
		SPI: SPI{
			Dev:     "/dev/spidev0.0",
			SpeedHz: 4000000,
			ResetUs: 100,
		},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Override returns base with every field that is set in c replacing the
// matching field of base. Realtime can only be switched on.
func (c *Config) Override(base Config) Config {
	if c == nil {
		return base
	}
	out := base
	if c.Driver != "" {
		out.Driver = c.Driver
	}
	if c.LEDs > 0 {
		out.LEDs = c.LEDs
	}
	if c.Variant != "" {
		out.Variant = c.Variant
	}
	if c.Effect != "" {
		out.Effect = c.Effect
	}
	if c.FrameMs > 0 {
		out.FrameMs = c.FrameMs
	}
	if c.Seed != 0 {
		out.Seed = c.Seed
	}
	if c.Realtime {
		out.Realtime = true
	}
	if c.Priority > 0 {
		out.Priority = c.Priority
	}
	if c.Addr != "" {
		out.Addr = c.Addr
	}
	if c.SPI.Dev != "" {
		out.SPI.Dev = c.SPI.Dev
	}
	if c.SPI.SpeedHz > 0 {
		out.SPI.SpeedHz = c.SPI.SpeedHz
	}
	if c.SPI.ResetUs > 0 {
		out.SPI.ResetUs = c.SPI.ResetUs
	}
	return out
}

func (c Config) Validate() error {
	switch c.Driver {
	case "spi", "spidev", "sim":
	default:
		return fmt.Errorf("driver %q: want spi, spidev or sim", c.Driver)
	}
	if c.LEDs < 1 {
		return fmt.Errorf("leds must be at least 1, got %d", c.LEDs)
	}
	if _, err := c.LEDVariant(); err != nil {
		return err
	}
	if c.FrameMs < 1 {
		return fmt.Errorf("frame_ms must be positive, got %d", c.FrameMs)
	}
	if c.Priority < 1 || c.Priority > 99 {
		return fmt.Errorf("priority must be in 1..99, got %d", c.Priority)
	}
	if c.SPI.SpeedHz <= 0 {
		return fmt.Errorf("spi.speed_hz must be positive, got %d", c.SPI.SpeedHz)
	}
	if c.SPI.ResetUs <= 0 {
		return fmt.Errorf("spi.reset_us must be positive, got %d", c.SPI.ResetUs)
	}
	if c.Driver != "sim" && c.SPI.Dev == "" {
		return fmt.Errorf("spi.dev is required for driver %s", c.Driver)
	}
	return nil
}

// LEDVariant parses the configured strip type.
func (c Config) LEDVariant() (led.Variant, error) {
	return led.ParseVariant(c.Variant)
}

func (c Config) BusSpeed() physic.Frequency {
	return physic.Frequency(c.SPI.SpeedHz) * physic.Hertz
}

func (c Config) ResetTime() time.Duration {
	return time.Duration(c.SPI.ResetUs) * time.Microsecond
}

func (c Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameMs) * time.Millisecond
}

// BusConfig is the bus the strip is driven through.
func (c Config) BusConfig() led.BusConfig {
	bc := led.DefaultBusConfig()
	bc.Device = c.SPI.Dev
	bc.Speed = c.BusSpeed()
	return bc
}
