// Package api exposes the classification engine over HTTP.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/engine"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/ensemble"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/observability/metrics"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/workflow"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/handlers"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/routes"
)

// Settings is the scoring configuration echoed by the rules status endpoint
// so operators can see the thresholds in force.
type Settings struct {
	Threshold          float64            `json:"threshold"`
	Thresholds         map[string]float64 `json:"thresholds,omitempty"`
	CorroborationBonus float64            `json:"corroboration_bonus"`
	AgreementBonus     float64            `json:"agreement_bonus"`
	ReviewThreshold    float64            `json:"review_threshold"`
}

// Handler serves the classification and rule administration endpoints.
type Handler struct {
	logger   *slog.Logger
	store    *rules.Store
	engine   *engine.Engine
	settings Settings
	metrics  *metrics.Metrics
}

// NewHandler creates an API handler over the engine and rule store.
func NewHandler(logger *slog.Logger, store *rules.Store, eng *engine.Engine, settings Settings, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:   logger.With("system", "api"),
		store:    store,
		engine:   eng,
		settings: settings,
		metrics:  m,
	}
}

// Routes returns the route group mounted under /api.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/api",
		Children: []routes.Group{
			{
				Prefix: "/rules",
				Routes: []routes.Route{
					{Method: http.MethodPost, Pattern: "/reload", Handler: h.reloadRules},
					{Method: http.MethodGet, Pattern: "/status", Handler: h.rulesStatus},
				},
			},
			{
				Prefix: "/documents",
				Routes: []routes.Route{
					{Method: http.MethodPost, Pattern: "", Handler: h.processDocument},
					{Method: http.MethodGet, Pattern: "/{id}", Handler: h.getDocument},
					{Method: http.MethodPost, Pattern: "/{id}/approve", Handler: h.approveDocument},
				},
			},
		},
		Routes: []routes.Route{
			{Method: http.MethodPost, Pattern: "/classify", Handler: h.classify},
		},
	}
}

type documentRequest struct {
	Text             string  `json:"text"`
	Sender           string  `json:"sender,omitempty"`
	JurisdictionHint *string `json:"jurisdiction_hint,omitempty"`
}

func (r documentRequest) document() (classify.Document, error) {
	if r.Text == "" {
		return classify.Document{}, errors.New("text is required")
	}
	return classify.Document{
		ID:               uuid.New(),
		Text:             r.Text,
		Sender:           r.Sender,
		JurisdictionHint: r.JurisdictionHint,
	}, nil
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.Decode[documentRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	doc, err := req.document()
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	outcome, err := h.engine.ClassifyNow(r.Context(), doc)
	if err != nil {
		handlers.RespondError(w, h.logger, mapStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, outcome)
}

func (h *Handler) processDocument(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.Decode[documentRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	doc, err := req.document()
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	state, err := h.engine.Process(r.Context(), doc)
	if err != nil && !errors.Is(err, workflow.ErrRetryLimitExceeded) {
		handlers.RespondError(w, h.logger, mapStatus(err), err)
		return
	}
	// A failed document still returns its terminal state; the caller reads
	// the outcome from the workflow history.
	handlers.RespondJSON(w, http.StatusCreated, state)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid document id: %w", err))
		return
	}

	state, err := h.engine.Document(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, mapStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, state)
}

func (h *Handler) approveDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid document id: %w", err))
		return
	}

	state, err := h.engine.Approve(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, mapStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, state)
}

type reloadResponse struct {
	Version     uint64                 `json:"version"`
	Rules       int                    `json:"rules"`
	Diagnostics []diagnostic           `json:"diagnostics,omitempty"`
	Counts      map[rules.Taxonomy]int `json:"counts"`
}

type diagnostic struct {
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

func (h *Handler) reloadRules(w http.ResponseWriter, r *http.Request) {
	set, diags, err := h.store.Reload()
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		if h.metrics != nil {
			h.metrics.RuleReloads.WithLabelValues("error").Inc()
		}
		return
	}
	if h.metrics != nil {
		h.metrics.RuleReloads.WithLabelValues("ok").Inc()
		h.metrics.ActiveRules.Set(float64(set.Len()))
	}

	resp := reloadResponse{
		Version: set.Version(),
		Rules:   set.Len(),
		Counts:  set.Counts(),
	}
	for _, d := range diags {
		resp.Diagnostics = append(resp.Diagnostics, diagnostic{
			Severity: string(d.Severity),
			Detail:   d.Error(),
		})
	}
	handlers.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) rulesStatus(w http.ResponseWriter, r *http.Request) {
	set := h.store.Snapshot()
	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"version":  set.Version(),
		"rules":    set.Len(),
		"counts":   set.Counts(),
		"settings": h.settings,
	})
}

func mapStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotAwaitingReview):
		return http.StatusConflict
	case errors.Is(err, ensemble.ErrAllClassifiersFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, ensemble.ErrInputMismatch):
		return http.StatusInternalServerError
	default:
		return workflow.MapHTTPStatus(err)
	}
}
