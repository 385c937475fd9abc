// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, rules, metrics) that domain
// systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/config"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/observability/metrics"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/database"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/lifecycle"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, the rule store, and metrics.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Rules     *rules.Store
	Metrics   *metrics.Metrics

	watchRules bool
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle:  lc,
		Logger:     logger,
		Database:   db,
		Rules:      rules.NewStore(cfg.Rules.Dir, logger),
		Metrics:    metrics.New(),
		watchRules: cfg.Rules.Watch,
	}, nil
}

// Start registers infrastructure systems with the lifecycle coordinator and
// loads the initial rule set. A rule set that fails to load is fatal at
// startup; later reload failures keep the previous set active.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}

	set, _, err := i.Rules.Reload()
	if err != nil {
		return fmt.Errorf("initial rules load failed: %w", err)
	}
	i.Metrics.ActiveRules.Set(float64(set.Len()))
	i.Metrics.RuleReloads.WithLabelValues("ok").Inc()

	if i.watchRules {
		if err := i.Rules.Watch(i.Lifecycle); err != nil {
			return fmt.Errorf("rules watcher start failed: %w", err)
		}
	}
	return nil
}
