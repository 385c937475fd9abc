package main

import (
	"encoding/json"
	"net/http"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/api"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/config"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/engine"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/ensemble"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/infrastructure"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/notify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/recordstore"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/workflow"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/lifecycle"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/middleware"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/routes"
)

type Modules struct {
	Engine   *engine.Engine
	API      *api.Handler
	notifier *notify.Publisher
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	resultOpts := classify.ResultOptions{
		Resolve: classify.ResolveOptions{
			Threshold:          cfg.Engine.Threshold,
			CorroborationBonus: cfg.Engine.CorroborationBonus,
		},
		Thresholds:      taxonomyThresholds(cfg.Engine.Thresholds),
		ReviewThreshold: cfg.Engine.ReviewThreshold,
	}

	runner := ensemble.NewRunner(infra.Logger, cfg.Engine.ClassifierTimeoutDuration(), ensemble.Options{
		AgreementBonus:  cfg.Engine.AgreementBonus,
		ReviewThreshold: cfg.Engine.ReviewThreshold,
	})
	runner.Register(classify.NewRuleClassifier(infra.Rules, resultOpts), cfg.Engine.RuleClassifierWeight)
	for _, mc := range cfg.Engine.ModelClassifiers {
		runner.Register(classify.NewModelClassifier(classify.ModelConfig{
			Name:     mc.Name,
			Endpoint: mc.Endpoint,
			Timeout:  cfg.Engine.ClassifierTimeoutDuration(),
		}, cfg.Engine.ReviewThreshold), mc.Weight)
	}

	machine := workflow.NewMachine(
		workflow.NewPostgresRepository(infra.Database.Connection()),
		infra.Logger,
		cfg.Engine.MaxRetries,
	)

	var records engine.RecordStore
	if cfg.RecordStore.Enabled() {
		records = recordstore.NewExcelStore(recordstore.Config{
			Path:  cfg.RecordStore.Path,
			Sheet: cfg.RecordStore.Sheet,
		}, infra.Logger)
	}

	var notifier *notify.Publisher
	var events engine.Notifier
	if cfg.Notify.Enabled() {
		publisher, err := notify.NewPublisher(notify.Config{
			URL:           cfg.Notify.URL,
			SubjectPrefix: cfg.Notify.SubjectPrefix,
		}, infra.Logger)
		if err != nil {
			return nil, err
		}
		notifier = publisher
		events = publisher
	}

	eng := engine.New(infra.Logger, machine, runner, records, events, infra.Metrics)

	settings := api.Settings{
		Threshold:          cfg.Engine.Threshold,
		Thresholds:         cfg.Engine.Thresholds,
		CorroborationBonus: cfg.Engine.CorroborationBonus,
		AgreementBonus:     cfg.Engine.AgreementBonus,
		ReviewThreshold:    cfg.Engine.ReviewThreshold,
	}

	return &Modules{
		Engine:   eng,
		API:      api.NewHandler(infra.Logger, infra.Rules, eng, settings, infra.Metrics),
		notifier: notifier,
	}, nil
}

// Start registers module shutdown hooks.
func (m *Modules) Start(lc *lifecycle.Coordinator) {
	if m.notifier != nil {
		lc.OnShutdown(func() {
			<-lc.Context().Done()
			m.notifier.Close()
		})
	}
}

func buildRouter(infra *infrastructure.Infrastructure, cfg *config.ServerConfig, modules *Modules) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	mux.Handle("GET /metrics", infra.Metrics.Handler())

	routes.Register(mux, modules.API.Routes())

	stack := middleware.New()
	stack.Use(middleware.Logger(infra.Logger))
	stack.Use(middleware.CORS(&cfg.CORS))
	return stack.Apply(mux)
}

func taxonomyThresholds(in map[string]float64) map[rules.Taxonomy]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[rules.Taxonomy]float64, len(in))
	for k, v := range in {
		out[rules.Taxonomy(k)] = v
	}
	return out
}
