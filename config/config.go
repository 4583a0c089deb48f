package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	DBOS     DBOS     `mapstructure:"dbos"`
	Log      Log      `mapstructure:"log"`
}

// Server holds the HTTP listener settings
type Server struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database selects the SQL driver and tunes its connection pool
type Database struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DBOS toggles durable workflows for writes
type DBOS struct {
	Enabled bool   `mapstructure:"enabled"`
	AppName string `mapstructure:"app_name"`
}

// Log configures the zap logger
type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var defaults = map[string]any{
	"server.port":                "8080",
	"server.read_timeout":        10 * time.Second,
	"server.write_timeout":       10 * time.Second,
	"server.idle_timeout":        120 * time.Second,
	"server.shutdown_timeout":    5 * time.Second,
	"database.driver":            "postgres",
	"database.url":               "",
	"database.max_open_conns":    10,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": time.Hour,
	"dbos.enabled":               false,
	"dbos.app_name":              "messaging-api",
	"log.level":                  "info",
	"log.development":            false,
}

// Load reads configuration from the environment and, when file is not
// empty, from a YAML file. Environment variables win over the file:
// database.url is DATABASE_URL, server.port is SERVER_PORT or PORT.
func Load(file string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	case "sqlite3":
		if c.DBOS.Enabled {
			return errors.New("config: DBOS requires a postgres database")
		}
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.Port == "" {
		return errors.New("config: server port is required")
	}
	return nil
}
