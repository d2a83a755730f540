package led

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// DefaultResetTime is the idle time sent ahead of every frame. WS2812B parts
// latch after 50µs low; this leaves headroom and gives 50 zero bytes at 4MHz.
const DefaultResetTime = 100 * time.Microsecond

// ResetPadding returns the smallest number of zero bytes whose transmission
// at speed lasts at least reset.
func ResetPadding(speed physic.Frequency, reset time.Duration) int {
	hz := int64(speed / physic.Hertz)
	if hz <= 0 || reset <= 0 {
		return 0
	}
	// bits = ceil(reset * hz / 1s)
	bits := (reset.Nanoseconds()*hz + int64(time.Second) - 1) / int64(time.Second)
	return int((bits + 7) / 8)
}

// Assembler turns pixel snapshots into SPI frames for one strip variant.
type Assembler struct {
	variant Variant
	order   []Channel
	padding int
}

// NewAssembler prepares frames for v clocked out at speed with at least
// reset of idle time ahead of the data.
func NewAssembler(v Variant, speed physic.Frequency, reset time.Duration) *Assembler {
	return &Assembler{
		variant: v,
		order:   v.Order(),
		padding: ResetPadding(speed, reset),
	}
}

func (a *Assembler) Variant() Variant { return a.variant }

// Padding is the number of leading zero bytes in every frame.
func (a *Assembler) Padding() int { return a.padding }

// PixelSize is the number of frame bytes used by one pixel.
func (a *Assembler) PixelSize() int { return len(a.order) * SignalBytes }

// FrameSize is the length of a frame carrying n pixels.
func (a *Assembler) FrameSize(n int) int { return a.padding + n*a.PixelSize() }

// Assemble encodes pixels into a new frame.
func (a *Assembler) Assemble(pixels []Pixel) []byte {
	frame := make([]byte, a.FrameSize(len(pixels)))
	off := a.padding
	for _, p := range pixels {
		for _, c := range a.order {
			sig := encodeTable[p.Get(c)]
			off += copy(frame[off:], sig[:])
		}
	}
	return frame
}

// AssembleBuffer encodes the current contents of b.
func (a *Assembler) AssembleBuffer(b *Buffer) []byte {
	return a.Assemble(b.view())
}

// Disassemble decodes a frame produced by Assemble back into n pixels.
func (a *Assembler) Disassemble(frame []byte, n int) ([]Pixel, error) {
	if want := a.FrameSize(n); len(frame) != want {
		return nil, fmt.Errorf("led: frame is %d bytes, want %d for %d pixels", len(frame), want, n)
	}
	for i, b := range frame[:a.padding] {
		if b != 0 {
			return nil, fmt.Errorf("%w: reset byte %d is %#02x", ErrBadSignal, i, b)
		}
	}
	out := make([]Pixel, n)
	off := a.padding
	for i := range out {
		for _, c := range a.order {
			var sig [SignalBytes]byte
			copy(sig[:], frame[off:off+SignalBytes])
			v, err := Decode(sig)
			if err != nil {
				return nil, fmt.Errorf("pixel %d: %w", i, err)
			}
			out[i].Set(c, v)
			off += SignalBytes
		}
	}
	return out, nil
}
