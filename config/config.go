/*
Package config loads the leave engine's runtime configuration.

PURPOSE:
  One Config struct for the server binary. Values come from, in increasing
  priority: built-in defaults, an optional YAML file, then LEAVE_* environment
  variables (dots become underscores: LEAVE_STORE_DRIVER, LEAVE_LOG_LEVEL).

USAGE:
  cfg, err := config.Load("")          // ./config/config.yaml or ./config.yaml
  cfg, err := config.Load("prod.yaml") // explicit file

SEE ALSO:
  - cmd/server/main.go: Consumes the config
  - logging/logger.go: Builds the zap logger from LogConfig
*/
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the global application config.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
	Leave  LeaveConfig  `mapstructure:"leave"`
}

// ServerConfig is the HTTP server config.
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Name         string `mapstructure:"name"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN builds a lib/pq connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig configures the optional Redis notification fan-out.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LeaveConfig tunes the leave engine itself.
type LeaveConfig struct {
	// CategoriesFile is a YAML or JSON list of leave categories seeded at
	// startup. Empty means the built-in defaults.
	CategoriesFile string `mapstructure:"categories_file"`

	MeetingCancellationReason          string `mapstructure:"meeting_cancellation_reason"`
	AllowReliefRevisionAfterResolution bool   `mapstructure:"allow_relief_revision_after_resolution"`
}

// Load reads config from defaults, the file at path (optional) and the
// environment. Priority: env > file > defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite.path", "leave.db")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.name", "leave")
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.postgres.max_open_conns", 25)
	v.SetDefault("store.postgres.max_idle_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "leave:notifications:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("leave.categories_file", "")
	v.SetDefault("leave.meeting_cancellation_reason", "")
	v.SetDefault("leave.allow_relief_revision_after_resolution", false)
}

// Validate checks the settings the server can't start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("invalid config: store.sqlite.path is required")
		}
	case DriverPostgres:
		if c.Store.Postgres.Host == "" || c.Store.Postgres.Name == "" {
			return fmt.Errorf("invalid config: store.postgres.host and store.postgres.name are required")
		}
	default:
		return fmt.Errorf("invalid config: store.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Store.Driver)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("invalid config: redis.addr is required when redis is enabled")
	}
	return nil
}
