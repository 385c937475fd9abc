package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
)

// Transition is one recorded edge in a document's history. Result carries
// the classification attached to the transition, if any (set when entering
// classified, validated, or manual_review).
type Transition struct {
	ID         uuid.UUID                      `json:"id"`
	DocumentID uuid.UUID                      `json:"document_id"`
	From       State                          `json:"from"`
	To         State                          `json:"to"`
	Trigger    string                         `json:"trigger,omitempty"`
	Result     *classify.ClassificationResult `json:"result,omitempty"`
	OccurredAt time.Time                      `json:"occurred_at"`
}

// DocumentState is a document's current position plus its full transition
// history. History is append-only and ordered by occurrence.
type DocumentState struct {
	DocumentID uuid.UUID    `json:"document_id"`
	Current    State        `json:"current"`
	Retries    int          `json:"retries"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	History    []Transition `json:"history,omitempty"`
}
