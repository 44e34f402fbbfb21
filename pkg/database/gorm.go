package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/internal/schema"
)

// NewGorm opens the application database from central config.
func NewGorm(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return NewGormFromConfig(FromCentralConfig(cfg))
}

// NewGormFromConfig opens Postgres through pgx, applies pool limits and pings.
func NewGormFromConfig(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLogger(cfg),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// gormLogger routes GORM's statement log into slog. Only slow queries and
// errors are reported unless query logging is enabled.
func gormLogger(cfg Config) logger.Interface {
	level := logger.Warn
	if cfg.EnableLogging {
		level = logger.Info
	}
	threshold := time.Duration(cfg.SlowQueryThresholdMs) * time.Millisecond
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	return logger.NewSlogLogger(slog.Default(), logger.Config{
		SlowThreshold:             threshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates or alters every table and rewrites legacy rows.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return schema.AutoMigrate(db.WithContext(ctx))
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
