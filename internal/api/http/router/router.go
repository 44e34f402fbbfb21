package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/internal/api/http/handler"
	"github.com/bookspot/bookspot_backend/internal/api/http/middleware"
	"github.com/bookspot/bookspot_backend/internal/service/audit"
	"github.com/bookspot/bookspot_backend/internal/service/auth"
	"github.com/bookspot/bookspot_backend/internal/service/link"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
	"github.com/bookspot/bookspot_backend/internal/service/user"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg           *config.Config
	Auth          authorize.IAuthorization
	UserSvc       user.Service
	AuthSvc       auth.Service
	SchedulingSvc scheduling.Service
	LinkSvc       link.Service
	AuditSvc      audit.Service
	Sweeper       *scheduling.SweepRunner
	// Redis backs the login limiter; without it counters stay in memory.
	Redis *redis.Client `optional:"true"`
}

type Router struct {
	p Params

	// authRequired replaces the session-backed middleware. Tests use it to
	// inject an actor without Redis.
	authRequired fiber.Handler
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

// WithAuthenticator overrides the authentication middleware.
func (r *Router) WithAuthenticator(h fiber.Handler) *Router {
	r.authRequired = h
	return r
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Middlewares
	authRequired := r.authRequired
	if authRequired == nil {
		authRequired = middleware.AuthRequired(r.p.AuthSvc, r.p.Auth)
	}
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Handlers
	authH := handler.NewAuthHandler(r.p.AuthSvc, r.p.UserSvc)
	userH := handler.NewUserHandler(r.p.UserSvc)
	slotH := handler.NewTimeslotHandler(r.p.SchedulingSvc)
	linkH := handler.NewLinkHandler(r.p.LinkSvc)
	adminH := handler.NewAdminHandler(r.p.Sweeper, r.p.AuditSvc)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	loginLimit := middleware.NewLoginLimiter(r.p.Redis, r.p.Cfg.Server.RateLimit)
	r.registerAuthRoutes(api, authH, authRequired, loginLimit)
	r.registerUserRoutes(api, userH, authRequired, requirePerm)
	r.registerTimeslotRoutes(api, slotH, authRequired, requirePerm)
	r.registerLinkRoutes(api, linkH, authRequired, requirePerm)
	r.registerAdminRoutes(api, adminH, authRequired, requirePerm)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return authorize.IsPolicyHealthy() },
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		app.Get(MetricsPath(r.p.Cfg), adaptor.HTTPHandler(promhttp.Handler()))
	}
}

// MetricsPath is where the Prometheus handler is mounted.
func MetricsPath(cfg *config.Config) string {
	if p := cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}
