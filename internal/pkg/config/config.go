// Package config loads the typed application configuration.
//
// Values come from built-in defaults, overridden by environment variables with
// the AUTOCLUB_ prefix. Nested keys use a double underscore, so
// AUTOCLUB_DB__HOST sets db.host. A .env file, if present, is exported to the
// environment first (see internal/pkg/env).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	appenv "github.com/ManuelReschke/AutoClub/internal/pkg/env"
)

const envPrefix = "AUTOCLUB_"

type Config struct {
	App      AppConfig      `koanf:"app" validate:"required"`
	DB       DBConfig       `koanf:"db" validate:"required"`
	Log      LogConfig      `koanf:"log" validate:"required"`
	Sequence SequenceConfig `koanf:"sequence" validate:"required"`
}

// AppConfig configures the HTTP server. RateLimit is the number of API
// requests a client may make per minute; 0 disables the limiter.
type AppConfig struct {
	Env             string        `koanf:"env" validate:"required,oneof=dev test prod"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"required,gt=0,lte=65535"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type DBConfig struct {
	Driver          string        `koanf:"driver" validate:"required,oneof=mysql postgres sqlite"`
	Host            string        `koanf:"host" validate:"required_unless=Driver sqlite"`
	Port            int           `koanf:"port" validate:"required_unless=Driver sqlite"`
	User            string        `koanf:"user" validate:"required_unless=Driver sqlite"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name" validate:"required_unless=Driver sqlite"`
	SSLMode         string        `koanf:"ssl_mode"`
	Path            string        `koanf:"path" validate:"required_if=Driver sqlite"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectRetries  int           `koanf:"connect_retries" validate:"gte=1"`
	RetryDelay      time.Duration `koanf:"retry_delay"`
	SlowThreshold   time.Duration `koanf:"slow_threshold"`
}

// DSN renders the driver specific data source name.
func (d DBConfig) DSN() string {
	switch d.Driver {
	case "mysql":
		// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=UTC"
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "postgres":
		sslMode := d.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			d.Host, d.User, d.Password, d.Name, d.Port, sslMode)
	default:
		return d.Path
	}
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"required,oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"required,oneof=json console"`
}

type SequenceConfig struct {
	Start int64 `koanf:"start" validate:"gte=10000000,lte=99999999"`
}

func defaults() map[string]any {
	appEnv := appenv.GetEnv("APP_ENV", "prod")
	format := "json"
	if appEnv == "dev" {
		format = "console"
	}

	return map[string]any{
		"app.env":              appEnv,
		"app.host":             "0.0.0.0",
		"app.port":             4000,
		"app.rate_limit":       120,
		"app.shutdown_timeout": "10s",
		"db.driver":            "mysql",
		"db.host":              appenv.GetEnv("DB_HOST", "127.0.0.1"),
		"db.port":              3306,
		"db.user":              appenv.GetEnv("DB_USER", ""),
		"db.password":          appenv.GetEnv("DB_PASSWORD", ""),
		"db.name":              appenv.GetEnv("DB_NAME", ""),
		"db.ssl_mode":          "disable",
		"db.path":              "autoclub.db",
		"db.max_open_conns":    25,
		"db.max_idle_conns":    5,
		"db.conn_max_lifetime": "30m",
		"db.connect_retries":   5,
		"db.retry_delay":       "5s",
		"db.slow_threshold":    "200ms",
		"log.level":            "info",
		"log.format":           format,
		"sequence.start":       10000000,
	}
}

// Load reads and validates the configuration. overrides, keyed by dotted
// path, are applied last; tests and the CLI use them for flag values.
func Load(overrides map[string]any) (*Config, error) {
	if _, err := appenv.SetupEnvFile(); err != nil {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}
