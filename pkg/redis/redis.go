package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Options maps c onto go-redis options. Pool settings of zero keep the
// go-redis defaults.
func (c Config) Options() *goredis.Options {
	opts := &goredis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  c.DialTimeout(),
		ReadTimeout:  c.ReadTimeout(),
		WriteTimeout: c.WriteTimeout(),
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		opts.MinIdleConns = c.MinIdleConns
	}
	return opts
}

// Connect opens a client for the session store and the sweep lock and pings
// it, bounded by the dial timeout. The client is closed again when the ping
// fails.
func Connect(ctx context.Context, c Config) (*goredis.Client, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}

	rdb := goredis.NewClient(c.Options())

	ctx, cancel := context.WithTimeout(ctx, c.DialTimeout())
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.Addr, err)
	}
	return rdb, nil
}
