package config

import "os"

// NotifyConfig configures event publication. An empty URL disables it.
type NotifyConfig struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Enabled reports whether event publication is configured.
func (c *NotifyConfig) Enabled() bool {
	return c.URL != ""
}

// Merge overwrites non-zero fields from overlay.
func (c *NotifyConfig) Merge(overlay *NotifyConfig) {
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.SubjectPrefix != "" {
		c.SubjectPrefix = overlay.SubjectPrefix
	}
}

// Finalize applies defaults and environment overrides.
func (c *NotifyConfig) Finalize() error {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "documents"
	}
	if v := os.Getenv("DELTA_NATS_URL"); v != "" {
		c.URL = v
	}
	return nil
}
