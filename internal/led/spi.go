package led

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPI sends frames through a periph.io SPI port.
type SPI struct {
	mu   sync.Mutex
	port spi.PortCloser
	c    spi.Conn
	cfg  BusConfig
	max  int
}

// OpenSPI initializes the host drivers and connects to cfg.Device. An empty
// device name picks the first registered port.
func OpenSPI(cfg BusConfig) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	name := cfg.Device
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", name, err)
	}
	return NewSPI(p, cfg)
}

// NewSPI connects an already opened port. The port is closed on failure.
func NewSPI(p spi.PortCloser, cfg BusConfig) (*SPI, error) {
	cfg = cfg.withDefaults()
	c, err := p.Connect(cfg.Speed, cfg.Mode, cfg.BitsPerWord)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("spi connect %s: %w", cfg, err)
	}
	s := &SPI{port: p, c: c, cfg: cfg}
	if l, ok := c.(conn.Limits); ok {
		s.max = l.MaxTxSize()
	}
	return s, nil
}

// Config returns the parameters the port was connected with.
func (s *SPI) Config() BusConfig { return s.cfg }

// MaxTxSize is the largest frame the port accepts in one transfer, or 0 if
// the driver reports no limit.
func (s *SPI) MaxTxSize() int { return s.max }

func (s *SPI) Transmit(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return ErrClosed
	}
	if s.max > 0 && len(frame) > s.max {
		return fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(frame), s.max)
	}
	if err := s.c.Tx(frame, nil); err != nil {
		return fmt.Errorf("spi tx: %w", err)
	}
	return nil
}

func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.c = nil
	return err
}

func (s *SPI) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return "spi{closed}"
	}
	return fmt.Sprintf("spi{%s}", s.c)
}
