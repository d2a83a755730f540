package strip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Signals that end a session cleanly.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Run starts s, calls loop with a context that is cancelled on SIGINT or
// SIGTERM, and terminates s on every way out of loop.
//
// loop is expected to refresh the strip and to return once ctx is done,
// checking it between refreshes only. A loop that ends because of the
// signal is not an error. Any other loop error is returned after the strip
// has been blanked and the bus released.
func Run(ctx context.Context, s *Session, loop func(ctx context.Context) error) (err error) {
	ctx, stop := signal.NotifyContext(ctx, Signals...)
	defer stop()

	if err := s.Start(); err != nil {
		_ = s.Terminate()
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = s.Terminate()
			panic(r)
		}
		if terr := s.Terminate(); terr != nil {
			err = errors.Join(err, fmt.Errorf("terminate: %w", terr))
		}
	}()

	err = loop(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.log.Info().Msg("stop requested")
		return nil
	}
	return err
}
