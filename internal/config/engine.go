package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ModelClassifierConfig configures one remote model classifier ensemble
// member.
type ModelClassifierConfig struct {
	Name     string  `toml:"name"`
	Endpoint string  `toml:"endpoint"`
	Weight   float64 `toml:"weight"`
}

// EngineConfig tunes classification scoring, ensemble combination, and the
// pipeline's retry behavior.
type EngineConfig struct {
	// Threshold is the default per-taxonomy confidence floor.
	Threshold float64 `toml:"threshold"`
	// Thresholds overrides the floor for individual taxonomies.
	Thresholds map[string]float64 `toml:"thresholds"`

	CorroborationBonus float64 `toml:"corroboration_bonus"`
	AgreementBonus     float64 `toml:"agreement_bonus"`
	ReviewThreshold    float64 `toml:"review_threshold"`

	ClassifierTimeout string `toml:"classifier_timeout"`
	MaxRetries        int    `toml:"max_retries"`

	RuleClassifierWeight float64                 `toml:"rule_classifier_weight"`
	ModelClassifiers     []ModelClassifierConfig `toml:"model_classifiers"`
}

// ClassifierTimeoutDuration returns ClassifierTimeout as a time.Duration.
func (c *EngineConfig) ClassifierTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ClassifierTimeout)
	return d
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.Threshold != 0 {
		c.Threshold = overlay.Threshold
	}
	if len(overlay.Thresholds) > 0 {
		if c.Thresholds == nil {
			c.Thresholds = make(map[string]float64)
		}
		for k, v := range overlay.Thresholds {
			c.Thresholds[k] = v
		}
	}
	if overlay.CorroborationBonus != 0 {
		c.CorroborationBonus = overlay.CorroborationBonus
	}
	if overlay.AgreementBonus != 0 {
		c.AgreementBonus = overlay.AgreementBonus
	}
	if overlay.ReviewThreshold != 0 {
		c.ReviewThreshold = overlay.ReviewThreshold
	}
	if overlay.ClassifierTimeout != "" {
		c.ClassifierTimeout = overlay.ClassifierTimeout
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.RuleClassifierWeight != 0 {
		c.RuleClassifierWeight = overlay.RuleClassifierWeight
	}
	if len(overlay.ModelClassifiers) > 0 {
		c.ModelClassifiers = overlay.ModelClassifiers
	}
}

// Finalize applies defaults, environment overrides, and validation.
func (c *EngineConfig) Finalize() error {
	if c.Threshold == 0 {
		c.Threshold = 0.5
	}
	if c.CorroborationBonus == 0 {
		c.CorroborationBonus = 0.05
	}
	if c.AgreementBonus == 0 {
		c.AgreementBonus = 0.05
	}
	if c.ReviewThreshold == 0 {
		c.ReviewThreshold = 0.7
	}
	if c.ClassifierTimeout == "" {
		c.ClassifierTimeout = "5s"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RuleClassifierWeight == 0 {
		c.RuleClassifierWeight = 1.0
	}

	if v := os.Getenv("DELTA_ENGINE_REVIEW_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ReviewThreshold = f
		}
	}
	if v := os.Getenv("DELTA_ENGINE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}

	for name, value := range map[string]float64{
		"threshold":              c.Threshold,
		"corroboration_bonus":    c.CorroborationBonus,
		"agreement_bonus":        c.AgreementBonus,
		"review_threshold":       c.ReviewThreshold,
		"rule_classifier_weight": c.RuleClassifierWeight,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s out of range [0,1]: %v", name, value)
		}
	}
	for taxonomy, value := range c.Thresholds {
		if value < 0 || value > 1 {
			return fmt.Errorf("thresholds.%s out of range [0,1]: %v", taxonomy, value)
		}
	}
	if err := validateDuration("classifier_timeout", c.ClassifierTimeout); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max_retries: %d", c.MaxRetries)
	}
	for _, mc := range c.ModelClassifiers {
		if mc.Endpoint == "" {
			return fmt.Errorf("model classifier %q missing endpoint", mc.Name)
		}
		if mc.Weight <= 0 {
			return fmt.Errorf("model classifier %q has non-positive weight", mc.Name)
		}
	}
	return nil
}
