//go:build linux

package led

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

/*
spidev ioctl numbers from linux/spi/spidev.h. x/sys/unix does not carry them.
*/
const (
	spiIOCWriteMode        = 0x40016b01
	spiIOCReadMode         = 0x80016b01
	spiIOCWriteBitsPerWord = 0x40016b03
	spiIOCReadBitsPerWord  = 0x80016b03
	spiIOCWriteMaxSpeedHz  = 0x40046b04
	spiIOCReadMaxSpeedHz   = 0x80046b04
	spiIOCMessage1         = 0x40206b00 // SPI_IOC_MESSAGE(1)
)

// spiIOCTransfer mirrors struct spi_ioc_transfer (32 bytes).
type spiIOCTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

// Spidev talks to /dev/spidevB.C directly with ioctls, bypassing periph's
// driver registry.
type Spidev struct {
	mu  sync.Mutex
	f   *os.File
	cfg BusConfig
	hz  uint32
}

// OpenSpidev opens cfg.Device and applies mode, word size and speed, reading
// each back so the stored config reflects what the driver accepted.
func OpenSpidev(cfg BusConfig) (*Spidev, error) {
	cfg = cfg.withDefaults()
	f, err := os.OpenFile(cfg.Device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open spidev: %w", err)
	}
	fd := f.Fd()

	mode := uint8(cfg.Mode & 0x3)
	if err := ioctl(fd, spiIOCWriteMode, unsafe.Pointer(&mode)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("SPI set mode: %w", err)
	}
	if err := ioctl(fd, spiIOCReadMode, unsafe.Pointer(&mode)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("SPI get mode: %w", err)
	}

	bpw := uint8(cfg.BitsPerWord)
	if err := ioctl(fd, spiIOCWriteBitsPerWord, unsafe.Pointer(&bpw)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("SPI set bits-per-word: %w", err)
	}
	if err := ioctl(fd, spiIOCReadBitsPerWord, unsafe.Pointer(&bpw)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("SPI get bits-per-word: %w", err)
	}

	hz := uint32(cfg.Speed / physic.Hertz)
	if err := ioctl(fd, spiIOCWriteMaxSpeedHz, unsafe.Pointer(&hz)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("SPI set speed: %w", err)
	}
	if err := ioctl(fd, spiIOCReadMaxSpeedHz, unsafe.Pointer(&hz)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("SPI get speed: %w", err)
	}

	cfg.Mode = spi.Mode(mode)
	cfg.BitsPerWord = int(bpw)
	cfg.Speed = physic.Frequency(hz) * physic.Hertz
	return &Spidev{f: f, cfg: cfg, hz: hz}, nil
}

func ioctl(fd uintptr, req uint, arg unsafe.Pointer) error {
	if _, _, e := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), uintptr(arg)); e != 0 {
		return e
	}
	return nil
}

// spiMessage issues one SPI_IOC_MESSAGE(1) and returns the byte count the
// driver reports.
var spiMessage = func(fd uintptr, tr *spiIOCTransfer) (int, error) {
	n, _, e := unix.Syscall(unix.SYS_IOCTL, fd, spiIOCMessage1, uintptr(unsafe.Pointer(tr)))
	if e != 0 {
		return 0, e
	}
	return int(n), nil
}

// Config returns the parameters read back from the driver.
func (s *Spidev) Config() BusConfig { return s.cfg }

func (s *Spidev) Transmit(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if len(frame) == 0 {
		return nil
	}
	tr := spiIOCTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&frame[0]))),
		length:      uint32(len(frame)),
		speedHz:     s.hz,
		bitsPerWord: uint8(s.cfg.BitsPerWord),
	}
	n, err := spiMessage(s.f.Fd(), &tr)
	runtime.KeepAlive(frame)
	if err != nil {
		return fmt.Errorf("spi message: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortTransfer, n, len(frame))
	}
	return nil
}

func (s *Spidev) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}

func (s *Spidev) String() string {
	return fmt.Sprintf("spidev{%s}", s.cfg)
}
