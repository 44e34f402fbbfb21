package database

import (
	"time"

	"github.com/bookspot/bookspot_backend/config"
)

const (
	defaultPort        = 5432
	defaultSSLMode     = "disable"
	defaultMaxLifetime = 5 * time.Minute
)

// Config is the connection and pool shape shared by the GORM pool and the
// plain database/sql connection used for provisioning.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int

	EnableLogging        bool
	SlowQueryThresholdMs int
}

func (c Config) DSN() string {
	return buildDSN(c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func (c Config) ConnMaxLifetime() time.Duration {
	if c.ConnMaxLifetimeMin <= 0 {
		return defaultMaxLifetime
	}
	return time.Duration(c.ConnMaxLifetimeMin) * time.Minute
}

// Maintenance returns the same server credentials pointed at the 'postgres'
// database, with pooling and logging left at zero.
func (c Config) Maintenance() Config {
	return Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   "postgres",
		SSLMode:  c.SSLMode,
	}
}

// FromCentralConfig maps a database section; a missing port or sslmode falls
// back to 5432 and "disable".
func FromCentralConfig(c config.DatabaseConfig) Config {
	out := Config{
		Host:                 c.Host,
		Port:                 c.Port,
		User:                 c.User,
		Password:             c.Password,
		DBName:               c.DBName,
		SSLMode:              c.SSLMode,
		MaxOpenConns:         c.Pool.MaxOpenConns,
		MaxIdleConns:         c.Pool.MaxIdleConns,
		ConnMaxLifetimeMin:   c.Pool.ConnMaxLifetimeMin,
		EnableLogging:        c.Logging.Enabled,
		SlowQueryThresholdMs: c.Logging.SlowQueryThresholdMs,
	}
	if out.Port == 0 {
		out.Port = defaultPort
	}
	if out.SSLMode == "" {
		out.SSLMode = defaultSSLMode
	}
	return out
}

// NewDSN is the DSN for a database section, used by the Casbin adapter.
func NewDSN(c config.DatabaseConfig) string {
	return FromCentralConfig(c).DSN()
}
