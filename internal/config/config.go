// Package config loads layered TOML configuration: a base file, an optional
// environment overlay, then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/database"
)

// Config is the root application configuration.
type Config struct {
	Environment     string `toml:"environment"`
	ShutdownTimeout string `toml:"shutdown_timeout"`

	Server      ServerConfig      `toml:"server"`
	Database    database.Config   `toml:"database"`
	Rules       RulesConfig       `toml:"rules"`
	Engine      EngineConfig      `toml:"engine"`
	Notify      NotifyConfig      `toml:"notify"`
	RecordStore RecordStoreConfig `toml:"record_store"`
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config file, merges the environment overlay next to it
// (config.<environment>.toml) when present, then finalizes every section with
// defaults, DELTA_* environment overrides, and validation.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := readFile(path, cfg); err != nil {
		return nil, err
	}

	env := cfg.Environment
	if v := os.Getenv("DELTA_ENVIRONMENT"); v != "" {
		env = v
	}
	if env != "" {
		overlayPath := overlay(path, env)
		if _, err := os.Stat(overlayPath); err == nil {
			overlayCfg := &Config{}
			if err := readFile(overlayPath, overlayCfg); err != nil {
				return nil, err
			}
			cfg.merge(overlayCfg)
		}
		cfg.Environment = env
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func overlay(path, env string) string {
	dir := filepath.Dir(path)
	return filepath.Join(dir, fmt.Sprintf("config.%s.toml", env))
}

func (c *Config) merge(o *Config) {
	if o.Environment != "" {
		c.Environment = o.Environment
	}
	if o.ShutdownTimeout != "" {
		c.ShutdownTimeout = o.ShutdownTimeout
	}
	c.Server.Merge(&o.Server)
	c.Database.Merge(&o.Database)
	c.Rules.Merge(&o.Rules)
	c.Engine.Merge(&o.Engine)
	c.Notify.Merge(&o.Notify)
	c.RecordStore.Merge(&o.RecordStore)
}

func (c *Config) finalize() error {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}

	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(&database.Env{
		Host:            "DELTA_DB_HOST",
		Port:            "DELTA_DB_PORT",
		Name:            "DELTA_DB_NAME",
		User:            "DELTA_DB_USER",
		Password:        "DELTA_DB_PASSWORD",
		SSLMode:         "DELTA_DB_SSL_MODE",
		MaxOpenConns:    "DELTA_DB_MAX_OPEN_CONNS",
		MaxIdleConns:    "DELTA_DB_MAX_IDLE_CONNS",
		ConnMaxLifetime: "DELTA_DB_CONN_MAX_LIFETIME",
		ConnTimeout:     "DELTA_DB_CONN_TIMEOUT",
	}); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Rules.Finalize(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if err := c.Engine.Finalize(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Notify.Finalize(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if err := c.RecordStore.Finalize(); err != nil {
		return fmt.Errorf("record_store: %w", err)
	}
	return nil
}
