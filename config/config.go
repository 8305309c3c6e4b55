/*
Package config loads server configuration with viper.

PURPOSE:
  One Config struct covering the HTTP server, the SQLite store, the
  advisory-lock backend, the notification sink, and the reconciliation
  job. Every key has a default so the server boots with no config file;
  a YAML file and REPUTATION_* environment variables override.

BACKEND SELECTION:
  lock.backend:     "memory" (single process) or "redis" (multi node)
  notify.backend:   "log" (zap) or "kafka"
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Lock      LockConfig      `mapstructure:"lock"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type StoreConfig struct {
	// Path is the SQLite database file; ":memory:" for in-memory.
	Path string `mapstructure:"path"`
}

type LockConfig struct {
	Backend  string `mapstructure:"backend"` // memory | redis
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NotifyConfig struct {
	Backend string   `mapstructure:"backend"` // log | kafka
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ReconcileConfig struct {
	Workers int `mapstructure:"workers"`
}

// Load reads configuration from path (optional), the environment, and
// built-in defaults, in that order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("store.path", "reputation.db")
	v.SetDefault("lock.backend", "memory")
	v.SetDefault("lock.address", "localhost:6379")
	v.SetDefault("lock.db", 0)
	v.SetDefault("notify.backend", "log")
	v.SetDefault("notify.brokers", []string{"localhost:9092"})
	v.SetDefault("notify.topic", "reputation-events")
	v.SetDefault("reconcile.workers", 4)

	v.SetEnvPrefix("REPUTATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Lock.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown lock backend %q (want memory or redis)", c.Lock.Backend)
	}
	switch c.Notify.Backend {
	case "log", "kafka":
	default:
		return fmt.Errorf("unknown notify backend %q (want log or kafka)", c.Notify.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
