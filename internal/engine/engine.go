// Package engine orchestrates the document pipeline: fan-out classification
// through the ensemble, workflow state tracking, record storage, and
// downstream notification.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/ensemble"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/notify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/observability/metrics"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/workflow"
)

// ErrNotAwaitingReview indicates an approval for a document that is not in
// manual review.
var ErrNotAwaitingReview = errors.New("document is not awaiting review")

// RecordStore persists a document's final classification for downstream
// compliance tracking.
type RecordStore interface {
	Record(ctx context.Context, documentID string, result classify.ClassificationResult, reviewed bool) error
}

// Notifier publishes document lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event) error
}

// Engine runs documents through the classification pipeline. RecordStore and
// Notifier are optional collaborators; a nil value disables that stage.
type Engine struct {
	logger   *slog.Logger
	machine  *workflow.Machine
	runner   *ensemble.Runner
	records  RecordStore
	notifier Notifier
	metrics  *metrics.Metrics
}

// New creates an Engine over the given collaborators.
func New(logger *slog.Logger, machine *workflow.Machine, runner *ensemble.Runner, records RecordStore, notifier Notifier, m *metrics.Metrics) *Engine {
	return &Engine{
		logger:   logger.With("system", "engine"),
		machine:  machine,
		runner:   runner,
		records:  records,
		notifier: notifier,
		metrics:  m,
	}
}

// Document returns the workflow state and history for a document.
func (e *Engine) Document(ctx context.Context, id uuid.UUID) (workflow.DocumentState, error) {
	return e.machine.Get(ctx, id)
}

// ClassifyNow classifies a document without touching workflow state. It backs
// the synchronous classification endpoint and dry-run tooling.
func (e *Engine) ClassifyNow(ctx context.Context, doc classify.Document) (ensemble.Outcome, error) {
	start := time.Now()
	outcome, err := e.runner.Run(ctx, doc)
	e.observe(outcome, time.Since(start))
	return outcome, err
}

// Process runs a document through the full pipeline: register, classify,
// validate or route to manual review, store, complete. Classification
// failures move the document to error and are retried up to the machine's
// retry limit before the document is failed.
func (e *Engine) Process(ctx context.Context, doc classify.Document) (workflow.DocumentState, error) {
	if _, err := e.machine.Register(ctx, doc.ID); err != nil {
		return workflow.DocumentState{}, err
	}
	if _, err := e.machine.Transition(ctx, doc.ID, workflow.StateProcessing, "ingest", nil); err != nil {
		return workflow.DocumentState{}, err
	}

	for {
		start := time.Now()
		outcome, err := e.runner.Run(ctx, doc)
		e.observe(outcome, time.Since(start))

		if err != nil {
			state, retryErr := e.fail(ctx, doc.ID, err)
			if retryErr != nil {
				return state, retryErr
			}
			continue
		}

		result := outcome.Combined
		if _, err := e.machine.Transition(ctx, doc.ID, workflow.StateClassified, "ensemble classification", &result); err != nil {
			return workflow.DocumentState{}, err
		}

		if result.RequiresReview {
			state, err := e.machine.Transition(ctx, doc.ID, workflow.StateManualReview, "low confidence or missing verdicts", &result)
			if err != nil {
				return workflow.DocumentState{}, err
			}
			e.count("manual_review")
			e.publish(ctx, doc.ID, workflow.StateManualReview, true)
			return state, nil
		}

		if _, err := e.machine.Transition(ctx, doc.ID, workflow.StateValidated, "confidence above threshold", &result); err != nil {
			return workflow.DocumentState{}, err
		}
		return e.finalize(ctx, doc.ID, result, false)
	}
}

// Approve resolves a manual review: the document's last recorded
// classification is accepted and the document proceeds to storage.
func (e *Engine) Approve(ctx context.Context, id uuid.UUID) (workflow.DocumentState, error) {
	doc, err := e.machine.Get(ctx, id)
	if err != nil {
		return workflow.DocumentState{}, err
	}
	if doc.Current != workflow.StateManualReview {
		return workflow.DocumentState{}, fmt.Errorf("%w: %s", ErrNotAwaitingReview, doc.Current)
	}

	result := lastResult(doc)
	if result == nil {
		return workflow.DocumentState{}, fmt.Errorf("%w: no classification on record", ErrNotAwaitingReview)
	}

	if _, err := e.machine.Transition(ctx, id, workflow.StateValidated, "manual review approved", result); err != nil {
		return workflow.DocumentState{}, err
	}
	return e.finalize(ctx, id, *result, true)
}

// fail moves the document to error and schedules a retry. A nil error return
// means the caller should retry classification; otherwise the document is
// failed and the returned state is terminal.
func (e *Engine) fail(ctx context.Context, id uuid.UUID, cause error) (workflow.DocumentState, error) {
	if _, err := e.machine.Transition(ctx, id, workflow.StateError, cause.Error(), nil); err != nil {
		return workflow.DocumentState{}, err
	}

	state, err := e.machine.Retry(ctx, id, "automatic retry")
	if err != nil {
		if errors.Is(err, workflow.ErrRetryLimitExceeded) {
			e.count("failed")
			e.publish(ctx, id, workflow.StateFailed, false)
			e.logger.Error("document failed after exhausting retries",
				"document", id,
				"error", cause)
			return state, fmt.Errorf("%w: %w", workflow.ErrRetryLimitExceeded, cause)
		}
		return workflow.DocumentState{}, err
	}

	e.logger.Warn("classification failed, retrying",
		"document", id,
		"attempt", state.Retries,
		"error", cause)
	return workflow.DocumentState{}, nil
}

// finalize stores the classification and walks the document to complete.
func (e *Engine) finalize(ctx context.Context, id uuid.UUID, result classify.ClassificationResult, reviewed bool) (workflow.DocumentState, error) {
	if e.records != nil {
		if err := e.records.Record(ctx, id.String(), result, reviewed); err != nil {
			if _, terr := e.machine.Transition(ctx, id, workflow.StateError, "record storage failed", nil); terr != nil {
				return workflow.DocumentState{}, terr
			}
			e.count("error")
			return workflow.DocumentState{}, fmt.Errorf("store classification record: %w", err)
		}
	}

	if _, err := e.machine.Transition(ctx, id, workflow.StateStored, "classification recorded", nil); err != nil {
		return workflow.DocumentState{}, err
	}
	state, err := e.machine.Transition(ctx, id, workflow.StateComplete, "pipeline finished", nil)
	if err != nil {
		return workflow.DocumentState{}, err
	}

	e.count("complete")
	e.publish(ctx, id, workflow.StateComplete, false)
	return state, nil
}

func (e *Engine) publish(ctx context.Context, id uuid.UUID, state workflow.State, review bool) {
	if e.notifier == nil {
		return
	}
	event := notify.Event{
		DocumentID: id.String(),
		State:      string(state),
		Review:     review,
		OccurredAt: time.Now().UTC(),
	}
	if err := e.notifier.Notify(ctx, event); err != nil {
		e.logger.Warn("event publish failed", "document", id, "error", err)
	}
}

func (e *Engine) observe(outcome ensemble.Outcome, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.ClassifyDuration.Observe(elapsed.Seconds())
	for _, failure := range outcome.Failures {
		e.metrics.ClassifierFailures.WithLabelValues(failure.Classifier).Inc()
	}
}

func (e *Engine) count(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.DocumentsProcessed.WithLabelValues(outcome).Inc()
}

func lastResult(doc workflow.DocumentState) *classify.ClassificationResult {
	for i := len(doc.History) - 1; i >= 0; i-- {
		if doc.History[i].Result != nil {
			return doc.History[i].Result
		}
	}
	return nil
}
