package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/formatting"
)

// ModelConfig configures the remote model-based classifier.
type ModelConfig struct {
	Name     string
	Endpoint string
	Timeout  time.Duration
}

type modelVerdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// modelResponse is the inference service's reply: one verdict per taxonomy.
// Missing or empty-label taxonomies become null verdicts.
type modelResponse struct {
	Verdicts map[string]modelVerdict `json:"verdicts"`
	Overall  float64                 `json:"overall,omitempty"`
}

// ModelClassifier delegates classification to an external inference service
// over HTTP. Calls are bounded by a timeout and wrapped in a circuit breaker
// so a degraded service fails fast instead of stalling the ensemble.
type ModelClassifier struct {
	name     string
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[ClassificationResult]
	review   float64
}

// NewModelClassifier creates a ModelClassifier for the configured endpoint.
func NewModelClassifier(cfg ModelConfig, reviewThreshold float64) *ModelClassifier {
	name := cfg.Name
	if name == "" {
		name = "model"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}

	return &ModelClassifier{
		name:     name,
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  gobreaker.NewCircuitBreaker[ClassificationResult](settings),
		review:   reviewThreshold,
	}
}

// Name implements Classifier.
func (c *ModelClassifier) Name() string {
	return c.name
}

// Classify implements Classifier.
func (c *ModelClassifier) Classify(ctx context.Context, doc Document) (ClassificationResult, error) {
	result, err := c.breaker.Execute(func() (ClassificationResult, error) {
		return c.invoke(ctx, doc)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ClassificationResult{}, fmt.Errorf("%w: %s: %w", ErrClassifierTimeout, c.name, err)
		}
		return ClassificationResult{}, fmt.Errorf("%w: %s: %w", ErrClassifierFailure, c.name, err)
	}
	return result, nil
}

func (c *ModelClassifier) invoke(ctx context.Context, doc Document) (ClassificationResult, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return ClassificationResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ClassificationResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ClassificationResult{}, fmt.Errorf("call inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ClassificationResult{}, fmt.Errorf("inference service returned %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassificationResult{}, fmt.Errorf("read response: %w", err)
	}

	parsed, err := formatting.Parse[modelResponse](string(content))
	if err != nil {
		return ClassificationResult{}, err
	}

	return c.mapResponse(parsed), nil
}

// mapResponse converts the wire response into a ClassificationResult with
// the same invariants the rule classifier guarantees.
func (c *ModelClassifier) mapResponse(resp modelResponse) ClassificationResult {
	result := ClassificationResult{Source: c.name}

	var sum float64
	anyNull := false
	for _, taxonomy := range rules.Taxonomies() {
		verdict := TaxonomyVerdict{Taxonomy: taxonomy}

		if mv, ok := resp.Verdicts[string(taxonomy)]; ok && mv.Label != "" {
			label := mv.Label
			verdict.Label = &label
			verdict.Confidence = clamp01(mv.Confidence)
		}

		*result.Verdict(taxonomy) = verdict
		sum += verdict.Confidence
		if verdict.Label == nil {
			anyNull = true
		}
	}

	result.Overall = sum / float64(len(rules.Taxonomies()))

	review := c.review
	if review <= 0 {
		review = DefaultReviewThreshold
	}
	result.RequiresReview = anyNull || result.Overall < review
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
