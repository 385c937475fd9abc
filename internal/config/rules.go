package config

import (
	"fmt"
	"os"
)

// RulesConfig locates the rule documents and controls hot reload.
type RulesConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// Merge overwrites non-zero fields from overlay.
func (c *RulesConfig) Merge(overlay *RulesConfig) {
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.Watch {
		c.Watch = true
	}
}

// Finalize applies defaults, environment overrides, and validation.
func (c *RulesConfig) Finalize() error {
	if c.Dir == "" {
		c.Dir = "config/rules"
	}
	if v := os.Getenv("DELTA_RULES_DIR"); v != "" {
		c.Dir = v
	}
	if c.Dir == "" {
		return fmt.Errorf("rules dir is required")
	}
	return nil
}
