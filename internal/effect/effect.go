// Package effect holds the animations that run on a strip.
package effect

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/coreman2200/neospi/internal/led"
)

// DefaultFrame is the delay between animation frames.
const DefaultFrame = 100 * time.Millisecond

// Painter is the buffer surface an effect draws on.
type Painter interface {
	Len() int
	SetPixel(i int, p led.Pixel) error
	Pixel(i int) (led.Pixel, error)
	Clear()
}

// Refresher is a Painter that can push its contents to the strip.
type Refresher interface {
	Painter
	Refresh() error
}

// Effect draws one frame per Step and returns false once it has nothing
// more to draw. A Step that returns false leaves the buffer untouched.
type Effect interface {
	Name() string
	Step(p Painter) (bool, error)
}

// Names lists the effects ByName knows.
var Names = []string{"show", "cylon", "droplets"}

// ByName builds the named effect for a strip of n pixels. Every effect it
// returns runs until Run's context is cancelled.
func ByName(name string, n int, rng *rand.Rand) (Effect, error) {
	switch name {
	case "cylon":
		return Repeat(func() Effect { return NewCylon(n) }), nil
	case "droplets":
		return Repeat(func() Effect { return NewDroplets(rng, 20) }), nil
	case "show", "":
		return NewShow(n, rng), nil
	default:
		return nil, fmt.Errorf("unknown effect %q (want one of %v)", name, Names)
	}
}

// Repeated plays a fresh pass of an effect each time the previous one ends.
type Repeated struct {
	fresh  func() Effect
	cur    Effect
	passes int
}

// Repeat loops the effects built by fresh.
func Repeat(fresh func() Effect) *Repeated {
	return &Repeated{fresh: fresh, cur: fresh()}
}

func (r *Repeated) Name() string { return r.cur.Name() }

// Passes counts the passes started so far.
func (r *Repeated) Passes() int { return r.passes + 1 }

// Step ends only if a brand new pass has nothing to draw.
func (r *Repeated) Step(p Painter) (bool, error) {
	more, err := r.cur.Step(p)
	if err != nil || more {
		return more, err
	}
	r.cur = r.fresh()
	r.passes++
	return r.cur.Step(p)
}

// NewRand returns a PCG source seeded with seed, or with the clock when
// seed is zero.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

// Run steps e and refreshes s once per frame until e finishes or ctx is
// done. ctx is only checked between refreshes, never during one.
func Run(ctx context.Context, s Refresher, e Effect, frame time.Duration) error {
	if frame <= 0 {
		frame = DefaultFrame
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := e.Step(s)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		if !more {
			return nil
		}
		if err := s.Refresh(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
