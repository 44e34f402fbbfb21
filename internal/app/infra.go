package app

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
	"github.com/bookspot/bookspot_backend/pkg/database"
	"github.com/bookspot/bookspot_backend/pkg/events"
	"github.com/bookspot/bookspot_backend/pkg/observability"
	pasetotoken "github.com/bookspot/bookspot_backend/pkg/paseto"
	redispkg "github.com/bookspot/bookspot_backend/pkg/redis"
	"github.com/bookspot/bookspot_backend/pkg/util/password"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideClock),
	fx.Provide(ProvideGorm),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideSchedulingMetrics),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvideEventPublisher),
	fx.Provide(ProvidePasetoManager),
	fx.Provide(ProvidePasswordParams),
)

func ProvideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func ProvideGorm(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := database.NewGorm(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrations.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			_ = database.Close(db)
			return nil, err
		}
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return database.Close(db)
		},
	})
	return db, nil
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.Connect(context.Background(), redispkg.FromCentralConfig(cfg.Redis))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config) (authorize.IAuthorization, error) {
	acfg := authorize.FromCentralConfig(cfg.Authorization)

	dsn := database.NewDSN(cfg.CasbinDatabase)
	enforcer, cleanup, err := authorize.NewEnforcer(context.Background(), acfg.CasbinModelPath, dsn)
	if err != nil {
		return nil, err
	}

	auth, err := authorize.NewAuthorization(enforcer, acfg.Options()...)
	if err != nil {
		cleanup(context.Background())
		return nil, err
	}
	if acfg.EnableAudit {
		auth = authorize.NewAuditedAuthorization(auth, slog.Default())
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("cleaning up Casbin enforcer")
			cleanup(ctx)
			return nil
		},
	})
	return auth, nil
}

// ProvideNatsClient connects to NATS when a URL is configured. With no URL
// the returned connection is nil and events are dropped.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if cfg.Nats.URL == "" {
		slog.Info("nats url not set, timeslot events disabled")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.Observability.ServiceName))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvideEventPublisher(nc *nats.Conn) events.Publisher {
	if nc == nil {
		return events.NopPublisher{}
	}
	return events.NewPublisher(nc)
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.FromCentralConfig(cfg))
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}

// ProvideSchedulingMetrics registers instruments after the meter provider is
// installed, so it takes the provider as an ordering dependency.
func ProvideSchedulingMetrics(_ *observability.Provider) *observability.SchedulingMetrics {
	return observability.NewSchedulingMetrics()
}

func ProvidePasetoManager(cfg *config.Config, clock clockwork.Clock) (*pasetotoken.Manager, error) {
	return pasetotoken.NewFromConfig(cfg, clock)
}

func ProvidePasswordParams(cfg *config.Config) (*password.Params, error) {
	return password.FromConfig(cfg.Password)
}
