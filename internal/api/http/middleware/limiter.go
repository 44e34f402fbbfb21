package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/bookspot/bookspot_backend/config"
)

const (
	defaultRequestsPerMinute = 120
	defaultLoginsPerMinute   = 10
)

// NewLimiterWithRedis limits each client IP to the configured requests per
// minute across the whole API, sharing counters between instances.
func NewLimiterWithRedis(rdb *redis.Client, cfg config.RateLimitConfig) fiber.Handler {
	return newLimiter(rdb, "rl:api:", orDefault(cfg.RequestsPerMinute, defaultRequestsPerMinute))
}

// NewLoginLimiter throttles credential guessing per client IP. Without Redis
// the counters live in process memory.
func NewLoginLimiter(rdb *redis.Client, cfg config.RateLimitConfig) fiber.Handler {
	return newLimiter(rdb, "rl:login:", orDefault(cfg.LoginRequestsPerMinute, defaultLoginsPerMinute))
}

func newLimiter(rdb *redis.Client, prefix string, limit int) fiber.Handler {
	lc := limiter.Config{
		Max:               limit,
		Expiration:        time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c fiber.Ctx) string { return prefix + c.IP() },
		LimitReached: func(c fiber.Ctx) error {
			body := fiber.Map{"error": "too many requests"}
			if rid, ok := RequestIDFromFiber(c); ok {
				body["request_id"] = rid
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(body)
		},
	}
	if rdb != nil {
		lc.Storage = fiberredis.NewFromConnection(rdb)
	}
	return limiter.New(lc)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
