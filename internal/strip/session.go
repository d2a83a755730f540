// Package strip owns the pixel buffer and bus of one LED strip and drives
// it through its lifecycle: Start, any number of Refresh calls, Terminate.
package strip

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/neospi/internal/led"
	"github.com/coreman2200/neospi/internal/sched"
)

var (
	ErrNotStarted = errors.New("strip: session not started")
	ErrClosed     = errors.New("strip: session closed")
	ErrState      = errors.New("strip: invalid session state")
)

// State is the lifecycle position of a Session.
type State int

const (
	Uninitialized State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Session. Count and Open are required.
type Options struct {
	Count   int
	Variant led.Variant
	Speed   physic.Frequency // bus clock, used to size the reset padding
	Reset   time.Duration    // minimum idle time ahead of each frame
	Open    led.Opener

	// Priority defaults to sched.Nop.
	Priority sched.Priority
	Logger   *zerolog.Logger

	// OnRefresh is called on the control goroutine after every frame that
	// reached the bus, including the final dark frame. It must not call
	// back into the Session.
	OnRefresh func(frameID uint64, pixels []led.Pixel)
}

// Session is the single owner of a strip's pixel buffer and bus handle.
// All methods are safe for concurrent use; Refresh and Terminate are
// serialized so a terminate request waits for an in-flight transfer.
type Session struct {
	mu       sync.Mutex
	state    State
	buf      *led.Buffer
	asm      *led.Assembler
	open     led.Opener
	t        led.Transport
	prio     sched.Priority
	elevated bool
	frames   uint64
	log      zerolog.Logger

	onRefresh func(uint64, []led.Pixel)
}

// New validates opts and allocates the pixel buffer. The bus is not opened
// until Start.
func New(opts Options) (*Session, error) {
	if opts.Open == nil {
		return nil, errors.New("strip: no bus opener")
	}
	buf, err := led.NewBuffer(opts.Count)
	if err != nil {
		return nil, err
	}
	if opts.Speed <= 0 {
		opts.Speed = led.DefaultSpeed
	}
	if opts.Reset <= 0 {
		opts.Reset = led.DefaultResetTime
	}
	if opts.Priority == nil {
		opts.Priority = sched.Nop{}
	}
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &Session{
		buf:       buf,
		asm:       led.NewAssembler(opts.Variant, opts.Speed, opts.Reset),
		open:      opts.Open,
		prio:      opts.Priority,
		log:       l.With().Str("component", "strip").Logger(),
		onRefresh: opts.OnRefresh,
	}, nil
}

// Start opens the bus, blanks the buffer and raises the scheduling class of
// the calling thread. Failing to raise priority is logged and tolerated.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Uninitialized {
		return fmt.Errorf("%w: start while %s", ErrState, s.state)
	}
	t, err := s.open()
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}
	s.t = t
	s.buf.Clear()

	if err := s.prio.Elevate(); err != nil {
		s.log.Warn().Err(err).Msg("realtime priority unavailable; running at default priority")
	} else {
		s.elevated = true
	}
	s.state = Active

	s.log.Info().
		Str("bus", t.String()).
		Int("leds", s.buf.Len()).
		Str("variant", s.asm.Variant().String()).
		Int("reset_bytes", s.asm.Padding()).
		Int("frame_bytes", s.asm.FrameSize(s.buf.Len())).
		Bool("realtime", s.elevated).
		Msg("strip session started")
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len is the fixed number of pixels.
func (s *Session) Len() int { return s.buf.Len() }

// Frames is the number of frames that reached the bus.
func (s *Session) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// FrameSize is the length in bytes of every frame this session sends.
func (s *Session) FrameSize() int { return s.asm.FrameSize(s.buf.Len()) }

// SetPixel stores p at index i. Out of range indexes are rejected.
func (s *Session) SetPixel(i int, p led.Pixel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return ErrClosed
	}
	return s.buf.Set(i, p)
}

func (s *Session) SetRGB(i int, r, g, b uint8) error {
	return s.SetPixel(i, led.Pixel{R: r, G: g, B: b})
}

func (s *Session) SetRGBW(i int, r, g, b, w uint8) error {
	return s.SetPixel(i, led.Pixel{R: r, G: g, B: b, W: w})
}

// Pixel returns the buffered value at index i.
func (s *Session) Pixel(i int) (led.Pixel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.At(i)
}

// Pixels returns a copy of the whole buffer.
func (s *Session) Pixels() []led.Pixel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Pixels()
}

// Clear switches every buffered pixel off. Nothing is sent until Refresh.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Clear()
}

// Refresh encodes the buffer and sends it as one transfer, returning once
// the bus write has completed. A failed transfer is never retried.
func (s *Session) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Uninitialized:
		return ErrNotStarted
	case Closed:
		return ErrClosed
	}
	return s.transmit()
}

func (s *Session) transmit() error {
	frame := s.asm.AssembleBuffer(s.buf)
	if err := s.t.Transmit(frame); err != nil {
		return fmt.Errorf("frame %d: %w", s.frames+1, err)
	}
	s.frames++
	if s.onRefresh != nil {
		s.onRefresh(s.frames, s.buf.Pixels())
	}
	return nil
}

// Terminate restores the default scheduling class, sends an all-dark frame
// and closes the bus. The bus is closed even when the dark frame fails.
// Further calls return nil.
func (s *Session) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Closed:
		return nil
	case Uninitialized:
		s.buf.Clear()
		s.state = Closed
		return nil
	}

	if s.elevated {
		if err := s.prio.Restore(); err != nil {
			s.log.Warn().Err(err).Msg("restore default priority")
		}
		s.elevated = false
	}

	var errs []error
	s.buf.Clear()
	if err := s.transmit(); err != nil {
		errs = append(errs, fmt.Errorf("dark frame: %w", err))
	}
	if err := s.t.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", s.t, err))
	}
	s.state = Closed

	err := errors.Join(errs...)
	if err != nil {
		s.log.Error().Err(err).Uint64("frames", s.frames).Msg("strip session terminated with errors")
	} else {
		s.log.Info().Uint64("frames", s.frames).Msg("strip session terminated")
	}
	return err
}
