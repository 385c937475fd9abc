package config

import (
	"fmt"
	"time"
)

func validateDuration(name, value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}
