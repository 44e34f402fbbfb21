package authorize

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	entadapter "github.com/casbin/ent-adapter"
)

// policyLoadHealthy is false after a watcher-triggered reload failed, until
// the next one succeeds.
var policyLoadHealthy atomic.Bool

func init() {
	policyLoadHealthy.Store(true)
}

// IsPolicyHealthy reports whether the last policy reload succeeded.
func IsPolicyHealthy() bool {
	return policyLoadHealthy.Load()
}

// CleanupFunc is a function that cleans up resources.
type CleanupFunc func(ctx context.Context)

// PolicyChannel is the Postgres NOTIFY channel that carries policy changes
// between instances.
const PolicyChannel = "bookspot_casbin_policy"

// NewEnforcer builds a DistributedEnforcer whose policy lives in Postgres
// behind the ent adapter. Policy changes made by any instance reach the others
// over LISTEN/NOTIFY. The returned cleanup must run on shutdown.
func NewEnforcer(ctx context.Context, modelPath string, dsn string) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	a, err := entadapter.NewAdapter("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin adapter: %w", err)
	}

	e, err := casbin.NewDistributedEnforcer(modelPath, a)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	w, err := psqlwatcher.NewWatcherWithConnString(ctx, dsn, psqlwatcher.Option{
		Channel: PolicyChannel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("casbin watcher: %w", err)
	}

	err = w.SetUpdateCallback(func(msg string) {
		slog.Debug("casbin policy update received", "message", msg)
		if err := e.LoadPolicy(); err != nil {
			slog.Error("failed to reload policy after watcher notification", "error", err)
			policyLoadHealthy.Store(false)
		} else {
			policyLoadHealthy.Store(true)
		}
	})
	if err != nil {
		return nil, nil, err
	}

	if err := e.SetWatcher(w); err != nil {
		return nil, nil, err
	}

	e.EnableAutoSave(true)
	e.EnableEnforce(true)

	cleanup := func(ctx context.Context) {
		w.Close()
		e.StopAutoLoadPolicy()
		slog.DebugContext(ctx, "casbin enforcer stopped")
	}

	return e, cleanup, nil
}
