package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/bookspot/bookspot_backend/pkg/constants"
)

var GlobalConf *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.rate_limit.requests_per_minute", 120)
	v.SetDefault("server.rate_limit.login_requests_per_minute", 10)

	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool.max_open_conns", 25)
	v.SetDefault("database.pool.max_idle_conns", 5)
	v.SetDefault("database.pool.conn_max_lifetime_minutes", 30)

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("authentication.session_ttl_minutes", 60*24)
	v.SetDefault("authentication.paseto.mode", "local")
	v.SetDefault("authentication.paseto.issuer", constants.AppName)
	v.SetDefault("authentication.paseto.access_ttl_minutes", 60)

	v.SetDefault("authorization.casbin_model_path", "config/casbin_model.conf")

	v.SetDefault("password.algorithm", "argon2id")
	v.SetDefault("password.memory_kib", 64*1024)
	v.SetDefault("password.iterations", 3)
	v.SetDefault("password.parallelism", 2)
	v.SetDefault("password.salt_length", 16)
	v.SetDefault("password.key_length", 32)

	v.SetDefault("booking.min_duration_minutes", 15)
	v.SetDefault("booking.max_duration_minutes", 480)
	v.SetDefault("booking.lock_timeout_ms", 3000)
	v.SetDefault("booking.sweep_interval_seconds", 60)
	v.SetDefault("booking.sweep_lock_ttl_seconds", 55)

	v.SetDefault("nats.audit_queue", "bookspot-audit")

	v.SetDefault("observability.service_name", constants.AppName)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output.stdout", true)
}

func ReadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)

	// BOOKSPOT_DATABASE_HOST overrides database.host
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional when the environment carries the settings.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}

	GlobalConf = config

	return config
}
