package ensemble_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/ensemble"
)

type stubClassifier struct {
	name   string
	result classify.ClassificationResult
	err    error
	delay  time.Duration
}

func (s *stubClassifier) Name() string { return s.name }

func (s *stubClassifier) Classify(ctx context.Context, _ classify.Document) (classify.ClassificationResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return classify.ClassificationResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func testRunner(t *testing.T, timeout time.Duration) *ensemble.Runner {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ensemble.NewRunner(logger, timeout, ensemble.Options{})
}

func testDocument() classify.Document {
	return classify.Document{ID: uuid.New(), Text: "Arborjet renewal"}
}

func TestRunnerCombinesSuccesses(t *testing.T) {
	runner := testRunner(t, time.Second)
	runner.Register(&stubClassifier{name: "rules", result: result("rules", "ARB", 0.9)}, 1)
	runner.Register(&stubClassifier{name: "model", result: result("model", "ARB", 0.8)}, 1)

	outcome, err := runner.Run(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcome.Individual) != 2 {
		t.Errorf("individual results = %d, want 2", len(outcome.Individual))
	}
	if outcome.Combined.Client.Label == nil || *outcome.Combined.Client.Label != "ARB" {
		t.Errorf("combined label = %v, want ARB", outcome.Combined.Client.Label)
	}
}

func TestRunnerDropsFailures(t *testing.T) {
	runner := testRunner(t, time.Second)
	runner.Register(&stubClassifier{name: "rules", result: result("rules", "ARB", 0.9)}, 1)
	runner.Register(&stubClassifier{name: "model", err: errors.New("service down")}, 5)

	outcome, err := runner.Run(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcome.Failures) != 1 || outcome.Failures[0].Classifier != "model" {
		t.Errorf("failures = %+v, want one model failure", outcome.Failures)
	}
	// The surviving classifier carries the decision despite its lower weight.
	if outcome.Combined.Client.Label == nil || *outcome.Combined.Client.Label != "ARB" {
		t.Errorf("combined label = %v, want ARB", outcome.Combined.Client.Label)
	}
}

func TestRunnerTimeoutIsAFailure(t *testing.T) {
	runner := testRunner(t, 20*time.Millisecond)
	runner.Register(&stubClassifier{name: "rules", result: result("rules", "ARB", 0.9)}, 1)
	runner.Register(&stubClassifier{name: "slow", result: result("slow", "COR", 0.9), delay: time.Second}, 1)

	outcome, err := runner.Run(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcome.Failures) != 1 || outcome.Failures[0].Classifier != "slow" {
		t.Errorf("failures = %+v, want the slow classifier dropped", outcome.Failures)
	}
}

func TestRunnerAllClassifiersFailed(t *testing.T) {
	runner := testRunner(t, time.Second)
	runner.Register(&stubClassifier{name: "a", err: errors.New("down")}, 1)
	runner.Register(&stubClassifier{name: "b", err: errors.New("also down")}, 1)

	_, err := runner.Run(context.Background(), testDocument())
	if !errors.Is(err, ensemble.ErrAllClassifiersFailed) {
		t.Errorf("error = %v, want ErrAllClassifiersFailed", err)
	}
}

func TestRunnerNoClassifiers(t *testing.T) {
	runner := testRunner(t, time.Second)
	if _, err := runner.Run(context.Background(), testDocument()); !errors.Is(err, ensemble.ErrAllClassifiersFailed) {
		t.Errorf("error = %v, want ErrAllClassifiersFailed", err)
	}
}

func TestRunnerRejectsNonPositiveWeight(t *testing.T) {
	runner := testRunner(t, time.Second)
	runner.Register(&stubClassifier{name: "rules"}, 0)
	if runner.Size() != 0 {
		t.Errorf("size = %d, want 0", runner.Size())
	}
}
