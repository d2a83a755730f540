package led

import (
	"fmt"
	"image"
	"sync"

	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"
)

// Sim is a hardware-free Transport. It keeps the frames it was given and,
// when a Drawer is attached, decodes each frame and draws it.
type Sim struct {
	mu     sync.Mutex
	asm    *Assembler
	n      int
	keep   int
	frames [][]byte
	count  int
	closed bool
	drawer display.Drawer
}

// NewSim records up to keep frames (0 keeps all of them) for a strip of n
// pixels assembled by asm.
func NewSim(asm *Assembler, n, keep int) *Sim {
	return &Sim{asm: asm, n: n, keep: keep}
}

// NewConsoleSim draws every frame on the terminal with ANSI colours.
func NewConsoleSim(asm *Assembler, n int) *Sim {
	return NewSim(asm, n, 1).WithDrawer(screen.New(n))
}

// WithDrawer attaches a drawer that receives every decoded frame.
func (s *Sim) WithDrawer(d display.Drawer) *Sim {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawer = d
	return s
}

func (s *Sim) Transmit(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if want := s.asm.FrameSize(s.n); len(frame) != want {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortTransfer, len(frame), want)
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.frames = append(s.frames, cp)
	if s.keep > 0 && len(s.frames) > s.keep {
		s.frames = s.frames[len(s.frames)-s.keep:]
	}
	s.count++
	if s.drawer != nil {
		px, err := s.asm.Disassemble(frame, s.n)
		if err != nil {
			return err
		}
		img := image.NewNRGBA(image.Rect(0, 0, s.n, 1))
		for x, p := range px {
			img.SetNRGBA(x, 0, p.NRGBA())
		}
		if err := s.drawer.Draw(s.drawer.Bounds(), img, image.Point{}); err != nil {
			return fmt.Errorf("sim draw: %w", err)
		}
	}
	return nil
}

// Frames returns copies of the retained frames, oldest first.
func (s *Sim) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	for i, f := range s.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Last decodes the most recent frame.
func (s *Sim) Last() ([]Pixel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, fmt.Errorf("sim: no frames sent")
	}
	return s.asm.Disassemble(s.frames[len(s.frames)-1], s.n)
}

// Count is the number of frames transmitted.
func (s *Sim) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.drawer != nil {
		return s.drawer.Halt()
	}
	return nil
}

func (s *Sim) String() string { return "sim" }
