package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/neospi/internal/led"
)

// bufPainter is an in-memory strip that records every refresh.
type bufPainter struct {
	*led.Buffer
	frames     [][]led.Pixel
	refreshErr error
	onRefresh  func()
}

func newPainter(t *testing.T, n int) *bufPainter {
	t.Helper()
	b, err := led.NewBuffer(n)
	require.NoError(t, err)
	return &bufPainter{Buffer: b}
}

func (p *bufPainter) SetPixel(i int, px led.Pixel) error { return p.Set(i, px) }
func (p *bufPainter) Pixel(i int) (led.Pixel, error)     { return p.At(i) }

func (p *bufPainter) Refresh() error {
	if p.refreshErr != nil {
		return p.refreshErr
	}
	p.frames = append(p.frames, p.Pixels())
	if p.onRefresh != nil {
		p.onRefresh()
	}
	return nil
}

func reds(px []led.Pixel) []uint8 {
	out := make([]uint8, len(px))
	for i, p := range px {
		out[i] = p.R
	}
	return out
}

func TestCylonFrames(t *testing.T) {
	const n = 8
	p := newPainter(t, n)
	c := NewCylon(n)

	var frames [][]uint8
	for {
		more, err := c.Step(p)
		require.NoError(t, err)
		if !more {
			break
		}
		frames = append(frames, reds(p.Pixels()))
		for _, px := range p.Pixels() {
			assert.Zero(t, px.G)
			assert.Zero(t, px.B)
		}
	}
	require.Len(t, frames, 4*n)

	assert.Equal(t, make([]uint8, n), frames[0], "bar starts off the strip")
	assert.Equal(t, []uint8{1, 2, 5, 11, 11, 5, 2, 1}, frames[n], "bar centred")
	assert.Equal(t, []uint8{1, 0, 0, 0, 0, 0, 0, 0}, frames[4*n-1])
}

func TestCylonLevelSaturates(t *testing.T) {
	assert.Equal(t, uint8(1), cylonLevel(0))
	assert.Equal(t, uint8(11), cylonLevel(3))
	assert.Equal(t, uint8(255), cylonLevel(12))
}

func TestDropletsFinish(t *testing.T) {
	const drops = 5
	p := newPainter(t, 16)
	d := NewDroplets(NewRand(7), drops)

	steps := 0
	for {
		more, err := d.Step(p)
		require.NoError(t, err)
		if !more {
			break
		}
		steps++
		for _, px := range p.Pixels() {
			assert.Less(t, px.R, uint8(128))
			assert.Less(t, px.G, uint8(128))
			assert.Less(t, px.B, uint8(128))
		}
		require.LessOrEqual(t, steps, drops*10)
	}
	assert.GreaterOrEqual(t, steps, drops)
}

func TestDropletsDim(t *testing.T) {
	d := NewDroplets(NewRand(1), 0)
	assert.Zero(t, d.dim(0))
	assert.Zero(t, d.dim(1))
	for v := 2; v < 256; v++ {
		got := d.dim(uint8(v))
		assert.Less(t, got, uint8(v))
		assert.GreaterOrEqual(t, int(got), v-v/4-1)
	}
}

func TestDropletsKeepsWhite(t *testing.T) {
	p := newPainter(t, 1)
	require.NoError(t, p.SetRGBW(0, 0, 0, 0, 42))
	d := NewDroplets(NewRand(3), 1)
	_, err := d.Step(p)
	require.NoError(t, err)
	px, err := p.At(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(42), px.W)
}

func TestShowRunsForever(t *testing.T) {
	p := newPainter(t, 8)
	s := NewShow(8, NewRand(11))
	assert.Nil(t, s.Current())

	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		more, err := s.Step(p)
		require.NoError(t, err)
		require.True(t, more)
		seen[s.Current().Name()] = true
	}
	assert.True(t, seen["cylon"])
	assert.True(t, seen["droplets"])
}

func TestByName(t *testing.T) {
	rng := NewRand(1)
	for _, name := range Names {
		e, err := ByName(name, 4, rng)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name())
	}
	e, err := ByName("", 4, rng)
	require.NoError(t, err)
	assert.Equal(t, "show", e.Name())

	_, err = ByName("rainbow", 4, rng)
	assert.Error(t, err)
}

func TestNewRandSeeded(t *testing.T) {
	a, b := NewRand(42), NewRand(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestRunUntilEffectEnds(t *testing.T) {
	p := newPainter(t, 4)
	err := Run(context.Background(), p, NewCylon(4), time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, p.frames, 16)
}

func TestRunSingleEffectLoopsUntilCancelled(t *testing.T) {
	for _, name := range []string{"cylon", "droplets"} {
		t.Run(name, func(t *testing.T) {
			const n, want = 4, 300
			e, err := ByName(name, n, NewRand(9))
			require.NoError(t, err)

			p := newPainter(t, n)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			p.onRefresh = func() {
				if len(p.frames) == want {
					cancel()
				}
			}
			err = Run(ctx, p, e, time.Microsecond)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Len(t, p.frames, want)
			assert.Greater(t, e.(*Repeated).Passes(), 1)
		})
	}
}

func TestRepeatEndsWhenPassIsEmpty(t *testing.T) {
	p := newPainter(t, 2)
	r := Repeat(func() Effect { return NewDroplets(NewRand(1), 0) })
	more, err := r.Step(p)
	require.NoError(t, err)
	assert.False(t, more)
}

func TestRunStopsOnCancel(t *testing.T) {
	p := newPainter(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.onRefresh = func() {
		if len(p.frames) == 3 {
			cancel()
		}
	}
	err := Run(ctx, p, NewShow(4, NewRand(5)), time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, p.frames, 3)
}

func TestRunReturnsRefreshError(t *testing.T) {
	p := newPainter(t, 4)
	boom := errors.New("bus gone")
	p.refreshErr = boom
	err := Run(context.Background(), p, NewCylon(4), time.Millisecond)
	assert.ErrorIs(t, err, boom)
}
