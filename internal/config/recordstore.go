package config

import "os"

// RecordStoreConfig configures the tracking workbook. An empty path disables
// record storage.
type RecordStoreConfig struct {
	Path  string `toml:"path"`
	Sheet string `toml:"sheet"`
}

// Enabled reports whether record storage is configured.
func (c *RecordStoreConfig) Enabled() bool {
	return c.Path != ""
}

// Merge overwrites non-zero fields from overlay.
func (c *RecordStoreConfig) Merge(overlay *RecordStoreConfig) {
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.Sheet != "" {
		c.Sheet = overlay.Sheet
	}
}

// Finalize applies defaults and environment overrides.
func (c *RecordStoreConfig) Finalize() error {
	if c.Sheet == "" {
		c.Sheet = "Classifications"
	}
	if v := os.Getenv("DELTA_RECORD_STORE_PATH"); v != "" {
		c.Path = v
	}
	return nil
}
