package sandbox

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/firefly-engineering/browserbox/internal/audit"
	"github.com/firefly-engineering/browserbox/internal/logging"
)

// TeardownTimeout bounds the teardown run from the signal path.
const TeardownTimeout = 30 * time.Second

// ErrInterrupted is the cause of a guarded context cancelled by a signal.
var ErrInterrupted = stderrors.New("interrupted")

// DefaultSignals are the signals Guard watches when none are given.
var DefaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Guard tears down every session in reg when the process receives one of
// signals (DefaultSignals when empty), then cancels the returned context
// with ErrInterrupted. The release func is the normal exit path: it stops
// watching and tears down whatever is still registered. Teardown runs at
// most once; errors are logged and never returned.
func Guard(ctx context.Context, reg *Registry, signals ...os.Signal) (context.Context, func()) {
	if len(signals) == 0 {
		signals = DefaultSignals
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	return guard(ctx, reg, ch, func() { signal.Stop(ch) })
}

func guard(parent context.Context, reg *Registry, ch <-chan os.Signal, stop func()) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			tctx, tcancel := context.WithTimeout(context.WithoutCancel(parent), TeardownTimeout)
			defer tcancel()
			if err := reg.TeardownAll(tctx); err != nil {
				logging.Error("sandbox teardown incomplete", "error", err)
			}
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-ch:
			logging.Warn("received signal, tearing down sandboxes", "signal", sig.String(), "live", reg.Len())
			for _, s := range reg.Live() {
				if s.manager != nil {
					s.manager.logEvent(s, audit.EventInterrupt, sig.String())
				}
			}
			teardown()
			cancel(ErrInterrupted)
		case <-ctx.Done():
		}
	}()

	release := func() {
		stop()
		teardown()
		cancel(context.Canceled)
		<-done
	}
	return ctx, release
}

// Interrupted reports whether ctx was cancelled by a guarded signal.
func Interrupted(ctx context.Context) bool {
	return stderrors.Is(context.Cause(ctx), ErrInterrupted)
}
