// internal/config/config.go
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sweep    SweepConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver      string // postgres, sqlite3 or memory
	URL         string
	AutoMigrate bool
}

type SweepConfig struct {
	Interval         time.Duration // 0 disables the server-side sweep
	ThresholdMinutes int
	Workers          int
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"port":      "port",
	"db":        "database_url",
	"driver":    "db_driver",
	"migrate":   "auto_migrate",
	"threshold": "sweep_threshold_minutes",
	"interval":  "sweep_interval",
	"workers":   "workers",
}

// Load reads configuration from a .env file, the environment and flags, in
// increasing order of precedence. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("port", "8000")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("database_url", "postgres://localhost:5432/kanban?sslmode=disable")
	v.SetDefault("auto_migrate", false)
	v.SetDefault("sweep_interval", time.Minute)
	v.SetDefault("sweep_threshold_minutes", 1440)
	v.SetDefault("workers", 0)
	v.SetDefault("log_level", "INFO")
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("port"),
			RequestTimeout:  v.GetDuration("request_timeout"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Driver:      v.GetString("db_driver"),
			URL:         v.GetString("database_url"),
			AutoMigrate: v.GetBool("auto_migrate"),
		},
		Sweep: SweepConfig{
			Interval:         v.GetDuration("sweep_interval"),
			ThresholdMinutes: v.GetInt("sweep_threshold_minutes"),
			Workers:          v.GetInt("workers"),
		},
		LogLevel: v.GetString("log_level"),
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite3", "memory":
	default:
		return errors.Errorf("unsupported DB_DRIVER %q; must be postgres, sqlite3 or memory", c.Database.Driver)
	}
	if c.Database.Driver != "memory" && c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Server.Port == "" {
		return errors.New("PORT is required")
	}
	if c.Sweep.ThresholdMinutes < 0 {
		return errors.New("SWEEP_THRESHOLD_MINUTES must not be negative")
	}
	if c.Sweep.Interval < 0 {
		return errors.New("SWEEP_INTERVAL must not be negative")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}
