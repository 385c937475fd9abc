package ensemble

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
)

// DefaultClassifierTimeout bounds a single classifier invocation.
const DefaultClassifierTimeout = 5 * time.Second

type member struct {
	classifier classify.Classifier
	weight     float64
}

// Failure records one classifier that did not produce a result for a
// document. Failures degrade the ensemble gracefully: the remaining voters
// carry the decision.
type Failure struct {
	Classifier string `json:"classifier"`
	Reason     string `json:"reason"`
}

// Outcome carries the combined verdicts along with each contributing
// classifier's individual result for auditing.
type Outcome struct {
	Combined   classify.ClassificationResult   `json:"combined"`
	Individual []classify.ClassificationResult `json:"individual,omitempty"`
	Failures   []Failure                       `json:"failures,omitempty"`
}

// Runner fans a document out to the registered classifiers concurrently and
// combines whatever succeeds. Individual classifier failures are logged and
// dropped from the vote; only a total wipeout surfaces as an error.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
	opts    Options
	members []member
}

// NewRunner creates a Runner with the given combination options. A
// non-positive timeout falls back to DefaultClassifierTimeout.
func NewRunner(logger *slog.Logger, timeout time.Duration, opts Options) *Runner {
	if timeout <= 0 {
		timeout = DefaultClassifierTimeout
	}
	return &Runner{
		logger:  logger.With("system", "ensemble"),
		timeout: timeout,
		opts:    opts,
	}
}

// Register adds a classifier to the ensemble with the given vote weight.
// Non-positive weights are rejected silently rather than skewing the vote.
func (r *Runner) Register(c classify.Classifier, weight float64) {
	if weight <= 0 {
		r.logger.Warn("ignoring classifier with non-positive weight",
			"classifier", c.Name(),
			"weight", weight)
		return
	}
	r.members = append(r.members, member{classifier: c, weight: weight})
}

// Size returns the number of registered classifiers.
func (r *Runner) Size() int {
	return len(r.members)
}

// Run classifies the document with every registered classifier in parallel,
// each bounded by the runner's timeout, and combines the successful results.
// Returns ErrAllClassifiersFailed when nothing succeeds.
func (r *Runner) Run(ctx context.Context, doc classify.Document) (Outcome, error) {
	if len(r.members) == 0 {
		return Outcome{}, ErrAllClassifiersFailed
	}

	var mu sync.Mutex
	var outcome Outcome
	var weights []float64

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range r.members {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			result, err := m.classifier.Classify(callCtx, doc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("classifier failed, dropping from vote",
					"classifier", m.classifier.Name(),
					"document", doc.ID,
					"error", err)
				outcome.Failures = append(outcome.Failures, Failure{
					Classifier: m.classifier.Name(),
					Reason:     err.Error(),
				})
				return nil
			}
			outcome.Individual = append(outcome.Individual, result)
			weights = append(weights, m.weight)
			return nil
		})
	}

	// Goroutines never return errors; Wait only orders the collection.
	_ = g.Wait()

	if len(outcome.Individual) == 0 {
		return outcome, ErrAllClassifiersFailed
	}

	combined, err := Combine(outcome.Individual, weights, r.opts)
	if err != nil {
		return outcome, err
	}
	outcome.Combined = combined
	return outcome, nil
}
