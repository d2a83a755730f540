package led

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange = errors.New("led: index out of range")
	ErrInvalidCount    = errors.New("led: strip must have at least one pixel")
)

// Buffer is the in-memory state of the strip. Its length is fixed at
// construction; index 0 is the pixel nearest the bus connector.
type Buffer struct {
	px []Pixel
}

// NewBuffer allocates n zeroed pixels.
func NewBuffer(n int) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	return &Buffer{px: make([]Pixel, n)}, nil
}

func (b *Buffer) Len() int { return len(b.px) }

func (b *Buffer) check(i int) error {
	if i < 0 || i >= len(b.px) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(b.px))
	}
	return nil
}

// Set stores p at index i.
func (b *Buffer) Set(i int, p Pixel) error {
	if err := b.check(i); err != nil {
		return err
	}
	b.px[i] = p
	return nil
}

func (b *Buffer) SetRGB(i int, r, g, bl uint8) error {
	return b.Set(i, Pixel{R: r, G: g, B: bl})
}

func (b *Buffer) SetRGBW(i int, r, g, bl, w uint8) error {
	return b.Set(i, Pixel{R: r, G: g, B: bl, W: w})
}

// At returns the pixel at index i.
func (b *Buffer) At(i int) (Pixel, error) {
	if err := b.check(i); err != nil {
		return Pixel{}, err
	}
	return b.px[i], nil
}

// Clear switches every pixel off.
func (b *Buffer) Clear() {
	clear(b.px)
}

func (b *Buffer) Fill(p Pixel) {
	for i := range b.px {
		b.px[i] = p
	}
}

// Pixels returns a copy of the buffer contents.
func (b *Buffer) Pixels() []Pixel {
	out := make([]Pixel, len(b.px))
	copy(out, b.px)
	return out
}

// view exposes the backing slice to the assembler without copying.
func (b *Buffer) view() []Pixel { return b.px }
