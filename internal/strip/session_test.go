package strip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/neospi/internal/led"
)

// fakePriority records the calls made by a session.
type fakePriority struct {
	calls      []string
	elevateErr error
}

func (p *fakePriority) Elevate() error {
	p.calls = append(p.calls, "elevate")
	return p.elevateErr
}

func (p *fakePriority) Restore() error {
	p.calls = append(p.calls, "restore")
	return nil
}

// failingTransport fails every transfer after the first ok ones.
type failingTransport struct {
	ok     int
	sent   int
	closed int
}

func (f *failingTransport) Transmit(frame []byte) error {
	if f.sent >= f.ok {
		return led.ErrShortTransfer
	}
	f.sent++
	return nil
}

func (f *failingTransport) Close() error   { f.closed++; return nil }
func (f *failingTransport) String() string { return "failing" }

func newTestSession(t *testing.T, n int, opts Options) (*Session, *led.Sim) {
	t.Helper()
	nop := zerolog.Nop()
	asm := led.NewAssembler(opts.Variant, led.DefaultSpeed, led.DefaultResetTime)
	sim := led.NewSim(asm, n, 0)
	opts.Count = n
	opts.Logger = &nop
	if opts.Open == nil {
		opts.Open = func() (led.Transport, error) { return sim, nil }
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s, sim
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Count: 8})
	assert.Error(t, err)
	_, err = New(Options{Count: 0, Open: func() (led.Transport, error) { return nil, nil }})
	assert.ErrorIs(t, err, led.ErrInvalidCount)
}

func TestLifecycle(t *testing.T) {
	prio := &fakePriority{}
	s, sim := newTestSession(t, 8, Options{Priority: prio})
	assert.Equal(t, Uninitialized, s.State())
	assert.ErrorIs(t, s.Refresh(), ErrNotStarted)

	require.NoError(t, s.Start())
	assert.Equal(t, Active, s.State())
	assert.ErrorIs(t, s.Start(), ErrState)

	require.NoError(t, s.SetRGB(0, 16, 0, 0))
	require.NoError(t, s.Refresh())
	assert.Equal(t, uint64(1), s.Frames())

	require.NoError(t, s.Terminate())
	assert.Equal(t, Closed, s.State())
	assert.True(t, sim.Closed())
	assert.Equal(t, []string{"elevate", "restore"}, prio.calls)

	// the last frame on the bus is dark and the buffer is zero
	last, err := sim.Last()
	require.NoError(t, err)
	for i, p := range last {
		assert.True(t, p.IsZero(), "pixel %d", i)
	}
	for i, p := range s.Pixels() {
		assert.True(t, p.IsZero(), "buffer %d", i)
	}
	assert.Equal(t, 2, sim.Count())

	assert.ErrorIs(t, s.Refresh(), ErrClosed)
	assert.ErrorIs(t, s.SetRGB(0, 1, 1, 1), ErrClosed)
	assert.NoError(t, s.Terminate(), "terminate is idempotent")
	assert.Equal(t, 2, sim.Count(), "no extra frames after close")
}

func TestStartBlanksBuffer(t *testing.T) {
	s, _ := newTestSession(t, 4, Options{})
	require.NoError(t, s.SetRGB(2, 9, 9, 9))
	require.NoError(t, s.Start())
	p, err := s.Pixel(2)
	require.NoError(t, err)
	assert.True(t, p.IsZero())
}

func TestStartToleratesPriorityFailure(t *testing.T) {
	prio := &fakePriority{elevateErr: errors.New("EPERM")}
	s, _ := newTestSession(t, 4, Options{Priority: prio})
	require.NoError(t, s.Start())
	require.NoError(t, s.Terminate())
	assert.Equal(t, []string{"elevate"}, prio.calls, "nothing to restore")
}

func TestStartOpenFailure(t *testing.T) {
	boom := errors.New("no such device")
	s, _ := newTestSession(t, 4, Options{Open: func() (led.Transport, error) { return nil, boom }})
	assert.ErrorIs(t, s.Start(), boom)
	assert.Equal(t, Uninitialized, s.State())
	assert.NoError(t, s.Terminate())
	assert.Equal(t, Closed, s.State())
}

func TestSetPixelBounds(t *testing.T) {
	const n = 8
	s, _ := newTestSession(t, n, Options{})
	require.NoError(t, s.Start())
	assert.NoError(t, s.SetRGB(n-1, 1, 2, 3))
	assert.ErrorIs(t, s.SetRGB(n, 1, 2, 3), led.ErrIndexOutOfRange)
	assert.Equal(t, n, s.Len())
}

func TestRefreshTwiceSendsIdenticalFrames(t *testing.T) {
	s, sim := newTestSession(t, 6, Options{})
	require.NoError(t, s.Start())
	require.NoError(t, s.SetRGB(3, 200, 100, 50))
	require.NoError(t, s.Refresh())
	require.NoError(t, s.Refresh())

	frames := sim.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, frames[0], frames[1])
	assert.Len(t, frames[0], s.FrameSize())
}

func TestRefreshOrder(t *testing.T) {
	s, sim := newTestSession(t, 3, Options{})
	require.NoError(t, s.Start())
	for i := 0; i < 3; i++ {
		s.Clear()
		require.NoError(t, s.SetRGB(i, 255, 0, 0))
		require.NoError(t, s.Refresh())
	}
	asm := led.NewAssembler(led.WS2812B, led.DefaultSpeed, led.DefaultResetTime)
	for i, f := range sim.Frames() {
		px, err := asm.Disassemble(f, 3)
		require.NoError(t, err)
		assert.Equal(t, uint8(255), px[i].R, "frame %d lit pixel %d", i, i)
	}
}

func TestScenarioEightPixels(t *testing.T) {
	s, sim := newTestSession(t, 8, Options{})
	require.NoError(t, s.Start())
	require.NoError(t, s.SetRGB(0, 16, 0, 0))
	require.NoError(t, s.Refresh())

	frame := sim.Frames()[0]
	assert.Equal(t, make([]byte, 50), frame[:50])
	assert.Equal(t, []byte{
		0x88, 0x88, 0x88, 0x88,
		0x88, 0x8E, 0x88, 0x88,
		0x88, 0x88, 0x88, 0x88,
	}, frame[50:62])
}

func TestRefreshFailureIsReturned(t *testing.T) {
	ft := &failingTransport{ok: 1}
	nop := zerolog.Nop()
	s, err := New(Options{Count: 2, Logger: &nop, Open: func() (led.Transport, error) { return ft, nil }})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Refresh())

	err = s.Refresh()
	assert.ErrorIs(t, err, led.ErrShortTransfer)
	assert.Equal(t, uint64(1), s.Frames())

	// terminate still closes the bus when the dark frame fails
	err = s.Terminate()
	assert.ErrorIs(t, err, led.ErrShortTransfer)
	assert.Equal(t, 1, ft.closed)
	assert.Equal(t, Closed, s.State())
}

func TestOnRefresh(t *testing.T) {
	var ids []uint64
	var lastPx []led.Pixel
	s, _ := newTestSession(t, 2, Options{OnRefresh: func(id uint64, px []led.Pixel) {
		ids = append(ids, id)
		lastPx = px
	}})
	require.NoError(t, s.Start())
	require.NoError(t, s.SetRGB(1, 1, 2, 3))
	require.NoError(t, s.Refresh())
	assert.Equal(t, led.RGB(1, 2, 3), lastPx[1])
	require.NoError(t, s.Terminate())
	assert.Equal(t, []uint64{1, 2}, ids)
	assert.True(t, lastPx[1].IsZero())
}

// blockingTransport holds each transfer until released.
type blockingTransport struct {
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	active  int
	overlap bool
	closed  bool
}

func (b *blockingTransport) Transmit(frame []byte) error {
	b.mu.Lock()
	b.active++
	if b.active > 1 || b.closed {
		b.overlap = true
	}
	b.mu.Unlock()

	b.entered <- struct{}{}
	<-b.release

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return nil
}

func (b *blockingTransport) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active > 0 {
		b.overlap = true
	}
	b.closed = true
	return nil
}

func (b *blockingTransport) String() string { return "blocking" }

func TestTerminateWaitsForInflightRefresh(t *testing.T) {
	bt := &blockingTransport{entered: make(chan struct{}, 2), release: make(chan struct{})}
	nop := zerolog.Nop()
	s, err := New(Options{Count: 4, Logger: &nop, Open: func() (led.Transport, error) { return bt, nil }})
	require.NoError(t, err)
	require.NoError(t, s.Start())

	refreshed := make(chan error, 1)
	go func() { refreshed <- s.Refresh() }()
	<-bt.entered

	terminated := make(chan error, 1)
	go func() { terminated <- s.Terminate() }()

	select {
	case <-terminated:
		t.Fatal("terminate finished while a transfer was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	bt.release <- struct{}{}
	require.NoError(t, <-refreshed)
	<-bt.entered // dark frame
	bt.release <- struct{}{}
	require.NoError(t, <-terminated)

	assert.False(t, bt.overlap)
	assert.True(t, bt.closed)
}

func TestRun(t *testing.T) {
	prio := &fakePriority{}
	s, sim := newTestSession(t, 4, Options{Priority: prio})

	err := Run(context.Background(), s, func(ctx context.Context) error {
		require.NoError(t, s.SetRGB(0, 255, 255, 255))
		return s.Refresh()
	})
	require.NoError(t, err)
	assert.Equal(t, Closed, s.State())
	assert.True(t, sim.Closed())
	assert.Equal(t, 2, sim.Count())
}

func TestRunCancelledIsClean(t *testing.T) {
	s, sim := newTestSession(t, 4, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	err := Run(ctx, s, func(ctx context.Context) error {
		for {
			if err := s.Refresh(); err != nil {
				return err
			}
			cancel()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	})
	assert.NoError(t, err)
	assert.Equal(t, Closed, s.State())
	assert.True(t, sim.Closed())
}

func TestRunLoopErrorStillTerminates(t *testing.T) {
	s, sim := newTestSession(t, 4, Options{})
	boom := errors.New("boom")
	err := Run(context.Background(), s, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, sim.Closed())
	last, lerr := sim.Last()
	require.NoError(t, lerr)
	assert.True(t, last[0].IsZero())
}
