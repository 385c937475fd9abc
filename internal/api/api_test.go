package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/api"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/engine"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/ensemble"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/workflow"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/routes"
)

const ruleDoc = `
taxonomy: client
rules:
  - label: ARB
    patterns:
      - { pattern: Arborjet, weight: 0.95 }
`

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clients.yaml"), []byte(ruleDoc), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	store := rules.NewStore(dir, logger)
	if _, _, err := store.Reload(); err != nil {
		t.Fatalf("initial reload: %v", err)
	}

	runner := ensemble.NewRunner(logger, time.Second, ensemble.Options{})
	runner.Register(classify.NewRuleClassifier(store, classify.ResultOptions{}), 1)

	machine := workflow.NewMachine(workflow.NewMemoryRepository(), logger, 3)
	eng := engine.New(logger, machine, runner, nil, nil, nil)

	mux := http.NewServeMux()
	routes.Register(mux, api.NewHandler(logger, store, eng, api.Settings{ReviewThreshold: 0.7}, nil).Routes())
	return mux
}

func request(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestClassifyEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := request(t, mux, http.MethodPost, "/api/classify", map[string]string{
		"text": "Arborjet renewal for the coming season",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var outcome ensemble.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if outcome.Combined.Client.Label == nil || *outcome.Combined.Client.Label != "ARB" {
		t.Errorf("client = %v, want ARB", outcome.Combined.Client.Label)
	}
}

func TestClassifyRejectsEmptyText(t *testing.T) {
	mux := newTestMux(t)
	rec := request(t, mux, http.MethodPost, "/api/classify", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDocumentLifecycleEndpoints(t *testing.T) {
	mux := newTestMux(t)

	rec := request(t, mux, http.MethodPost, "/api/documents", map[string]string{
		"text": "Arborjet tonnage report",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var state workflow.DocumentState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Only the client taxonomy matches, so the document lands in review.
	if state.Current != workflow.StateManualReview {
		t.Fatalf("state = %s, want manual_review", state.Current)
	}

	get := request(t, mux, http.MethodGet, "/api/documents/"+state.DocumentID.String(), nil)
	if get.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", get.Code)
	}

	approve := request(t, mux, http.MethodPost, "/api/documents/"+state.DocumentID.String()+"/approve", nil)
	if approve.Code != http.StatusOK {
		t.Fatalf("approve status = %d, want 200: %s", approve.Code, approve.Body)
	}

	var approved workflow.DocumentState
	if err := json.Unmarshal(approve.Body.Bytes(), &approved); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if approved.Current != workflow.StateComplete {
		t.Errorf("state = %s, want complete", approved.Current)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	mux := newTestMux(t)
	rec := request(t, mux, http.MethodGet, "/api/documents/6fa459ea-ee8a-3ca4-894e-db77e160355e", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetDocumentInvalidID(t *testing.T) {
	mux := newTestMux(t)
	rec := request(t, mux, http.MethodGet, "/api/documents/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRulesStatusAndReload(t *testing.T) {
	mux := newTestMux(t)

	status := request(t, mux, http.MethodGet, "/api/rules/status", nil)
	if status.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", status.Code)
	}

	var body struct {
		Version uint64 `json:"version"`
		Rules   int    `json:"rules"`
	}
	if err := json.Unmarshal(status.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Version != 1 || body.Rules != 1 {
		t.Errorf("status = %+v, want version 1 with 1 rule", body)
	}

	reload := request(t, mux, http.MethodPost, "/api/rules/reload", nil)
	if reload.Code != http.StatusOK {
		t.Fatalf("reload status = %d, want 200", reload.Code)
	}
	if err := json.Unmarshal(reload.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Version != 2 {
		t.Errorf("version = %d, want 2 after reload", body.Version)
	}
}
