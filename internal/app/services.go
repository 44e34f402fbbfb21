package app

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/internal/service/audit"
	"github.com/bookspot/bookspot_backend/internal/service/auth"
	"github.com/bookspot/bookspot_backend/internal/service/link"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
	"github.com/bookspot/bookspot_backend/internal/service/user"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
	"github.com/bookspot/bookspot_backend/pkg/events"
	"github.com/bookspot/bookspot_backend/pkg/observability"
	pasetotoken "github.com/bookspot/bookspot_backend/pkg/paseto"
	redispkg "github.com/bookspot/bookspot_backend/pkg/redis"
	"github.com/bookspot/bookspot_backend/pkg/util/password"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideSchedulingService,
		ProvideSweepRunner,
		ProvideUserService,
		ProvideLinkService,
		ProvideAuthService,
		ProvideAuditService,
	),
)

// SchedulingConfig maps the booking section onto the engine's settings.
func SchedulingConfig(cfg *config.Config) scheduling.Config {
	return scheduling.Config{
		MinDurationMinutes: cfg.Booking.MinDurationMinutes,
		MaxDurationMinutes: cfg.Booking.MaxDurationMinutes,
		LockTimeout:        time.Duration(cfg.Booking.LockTimeoutMs) * time.Millisecond,
	}
}

func ProvideSchedulingService(
	db *gorm.DB,
	clock clockwork.Clock,
	pub events.Publisher,
	metrics *observability.SchedulingMetrics,
	cfg *config.Config,
) scheduling.Service {
	return scheduling.New(db, clock, pub, metrics, SchedulingConfig(cfg))
}

func ProvideSweepRunner(svc scheduling.Service, rdb *redis.Client, clock clockwork.Clock, cfg *config.Config) *scheduling.SweepRunner {
	return scheduling.NewSweepRunner(svc, redispkg.NewLocker(rdb), clock,
		time.Duration(cfg.Booking.SweepIntervalSec)*time.Second,
		time.Duration(cfg.Booking.SweepLockTTLSeconds)*time.Second,
	)
}

func ProvideUserService(
	db *gorm.DB,
	clock clockwork.Clock,
	pub events.Publisher,
	authz authorize.IAuthorization,
	params *password.Params,
) user.Service {
	return user.New(db, clock, pub, authz, params)
}

func ProvideLinkService(
	db *gorm.DB,
	clock clockwork.Clock,
	pub events.Publisher,
	authz authorize.IAuthorization,
	params *password.Params,
) link.Service {
	return link.New(db, clock, pub, authz, params)
}

func ProvideAuthService(db *gorm.DB, rdb *redis.Client, paseto *pasetotoken.Manager, params *password.Params, cfg *config.Config) auth.Service {
	return auth.New(db, rdb, paseto, params, cfg)
}

func ProvideAuditService(db *gorm.DB) audit.Service {
	return audit.New(db)
}
