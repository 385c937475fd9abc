package classify

import (
	"context"

	"github.com/google/uuid"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
)

// Document is the classification input: extracted plain text plus optional
// metadata from the content-extraction collaborator. No raw byte or MIME
// parsing happens inside the engine.
type Document struct {
	ID               uuid.UUID `json:"id"`
	Text             string    `json:"text"`
	Sender           string    `json:"sender,omitempty"`
	JurisdictionHint *string   `json:"jurisdiction_hint,omitempty"`
}

// Classifier produces a ClassificationResult for a document. Implementations
// are hot-swappable: the ensemble treats rule-based and model-based
// classifiers uniformly.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, doc Document) (ClassificationResult, error)
}

// RuleClassifier classifies documents with the compiled pattern rule set.
// Each call snapshots the store's current RuleSet, so classification is
// never exposed to a half-updated rule set during reload.
type RuleClassifier struct {
	store *rules.Store
	opts  ResultOptions
}

// NewRuleClassifier creates a RuleClassifier over the given rule store.
func NewRuleClassifier(store *rules.Store, opts ResultOptions) *RuleClassifier {
	return &RuleClassifier{store: store, opts: opts}
}

// Name implements Classifier.
func (c *RuleClassifier) Name() string {
	return "rules"
}

// Classify implements Classifier. It never fails: an empty rule set or
// unmatched text yields a low-confidence result flagged for review.
func (c *RuleClassifier) Classify(_ context.Context, doc Document) (ClassificationResult, error) {
	set := c.store.Snapshot()
	matches := Classify(doc.Text, doc.JurisdictionHint, set)

	result := BuildResult(matches, c.opts)
	result.Source = c.Name()
	return result, nil
}
