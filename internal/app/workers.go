package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/internal/service/audit"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
)

// WorkerModule starts the background consumers: the audit trail subscriber
// and, when enabled, the in-process completion sweep.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     *config.Config
	NC      *nats.Conn `optional:"true"`
	Audit   audit.Service
	Sweeper *scheduling.SweepRunner
}

func RegisterWorkers(p WorkerParams) {
	var (
		sub    *nats.Subscription
		cancel context.CancelFunc = func() {}
		done                      = make(chan struct{})
	)

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if p.NC != nil {
				queue := p.Cfg.Nats.AuditQueue
				if queue == "" {
					queue = "bookspot-audit"
				}
				s, err := p.Audit.Subscribe(p.NC, queue)
				if err != nil {
					return err
				}
				sub = s
				slog.Info("audit_worker: started", "queue", queue)
			}

			if p.Cfg.Booking.SweepInProcess {
				var loopCtx context.Context
				loopCtx, cancel = context.WithCancel(context.Background())
				go func() {
					defer close(done)
					p.Sweeper.Loop(loopCtx)
				}()
				slog.Info("sweep_worker: started")
			} else {
				close(done)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			if sub != nil {
				return sub.Unsubscribe()
			}
			return nil
		},
	})
}
