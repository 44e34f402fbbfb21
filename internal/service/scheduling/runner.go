package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// SweepLockKey serializes sweep invocations across processes.
const SweepLockKey = "bookspot:lock:sweep"

// Locker takes a non-blocking lease on key. ok is false when another holder
// has it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// SweepRunner triggers SweepCompleted on demand or on a ticker, never running
// two sweeps at once.
type SweepRunner struct {
	svc      Service
	locker   Locker
	clock    clockwork.Clock
	lockTTL  time.Duration
	interval time.Duration
}

// NewSweepRunner builds a runner. A nil locker runs every sweep unguarded,
// which is only safe with a single process.
func NewSweepRunner(svc Service, locker Locker, clock clockwork.Clock, interval, lockTTL time.Duration) *SweepRunner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &SweepRunner{svc: svc, locker: locker, clock: clock, lockTTL: lockTTL, interval: interval}
}

// RunOnce performs one sweep. When another sweep holds the lock it returns
// zero without error.
func (r *SweepRunner) RunOnce(ctx context.Context) (int64, error) {
	if r.locker != nil {
		release, ok, err := r.locker.Acquire(ctx, SweepLockKey, r.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("sweep lock: %w", err)
		}
		if !ok {
			slog.InfoContext(ctx, "sweep skipped, another run holds the lock")
			return 0, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "sweep lock release failed", "err", err)
			}
		}()
	}
	return r.svc.SweepCompleted(ctx)
}

// Loop sweeps once immediately and then every interval until ctx is done.
func (r *SweepRunner) Loop(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}
