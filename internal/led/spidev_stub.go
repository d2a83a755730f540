//go:build !linux

package led

import "errors"

var errSpidevUnsupported = errors.New("spidev driver not supported on this platform")

type Spidev struct{}

func OpenSpidev(cfg BusConfig) (*Spidev, error) {
	return nil, errSpidevUnsupported
}

func (s *Spidev) Config() BusConfig           { return BusConfig{} }
func (s *Spidev) Transmit(frame []byte) error { return errSpidevUnsupported }
func (s *Spidev) Close() error                { return nil }
func (s *Spidev) String() string              { return "spidev{unsupported}" }
