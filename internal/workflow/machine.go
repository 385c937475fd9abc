package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
)

// DefaultMaxRetries bounds error-state reprocessing attempts per document.
const DefaultMaxRetries = 3

// Machine enforces the legal transition graph over a Repository. Transitions
// on the same document are serialized with a per-document lock; different
// documents proceed concurrently.
type Machine struct {
	repo       Repository
	logger     *slog.Logger
	maxRetries int

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewMachine creates a Machine over the given repository. A non-positive
// maxRetries falls back to DefaultMaxRetries.
func NewMachine(repo Repository, logger *slog.Logger, maxRetries int) *Machine {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Machine{
		repo:       repo,
		logger:     logger.With("system", "workflow"),
		maxRetries: maxRetries,
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *Machine) lock(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Register creates a document in the received state.
func (m *Machine) Register(ctx context.Context, id uuid.UUID) (DocumentState, error) {
	now := time.Now().UTC()
	doc := DocumentState{
		DocumentID: id,
		Current:    StateReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.repo.Create(ctx, doc); err != nil {
		return DocumentState{}, err
	}

	m.logger.Info("document registered", "document", id)
	return doc, nil
}

// Get returns the document's current state and history.
func (m *Machine) Get(ctx context.Context, id uuid.UUID) (DocumentState, error) {
	return m.repo.Get(ctx, id)
}

// Transition moves the document to the given state, recording the edge in
// its history. Illegal edges return ErrInvalidTransition; documents in
// complete or failed return ErrTerminalState.
func (m *Machine) Transition(ctx context.Context, id uuid.UUID, to State, trigger string, result *classify.ClassificationResult) (DocumentState, error) {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	return m.transition(ctx, id, to, trigger, result, nil)
}

// Retry moves a document from error back to processing, bounded by the
// retry limit. When the limit is exhausted the document is moved to failed
// and ErrRetryLimitExceeded is returned.
func (m *Machine) Retry(ctx context.Context, id uuid.UUID, trigger string) (DocumentState, error) {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	doc, err := m.repo.Get(ctx, id)
	if err != nil {
		return DocumentState{}, err
	}
	if doc.Current != StateError {
		return DocumentState{}, fmt.Errorf("%w: retry from %s", ErrInvalidTransition, doc.Current)
	}

	if doc.Retries >= m.maxRetries {
		doc, err = m.transition(ctx, id, StateFailed, "retry limit exhausted", nil, nil)
		if err != nil {
			return DocumentState{}, err
		}
		return doc, ErrRetryLimitExceeded
	}

	retries := doc.Retries + 1
	return m.transition(ctx, id, StateProcessing, trigger, nil, &retries)
}

func (m *Machine) transition(ctx context.Context, id uuid.UUID, to State, trigger string, result *classify.ClassificationResult, retries *int) (DocumentState, error) {
	if !to.Valid() {
		return DocumentState{}, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, to)
	}

	doc, err := m.repo.Get(ctx, id)
	if err != nil {
		return DocumentState{}, err
	}
	if doc.Current.Terminal() {
		return DocumentState{}, fmt.Errorf("%w: %s", ErrTerminalState, doc.Current)
	}
	if !doc.Current.CanTransition(to) {
		return DocumentState{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, doc.Current, to)
	}

	now := time.Now().UTC()
	tr := Transition{
		ID:         uuid.New(),
		DocumentID: id,
		From:       doc.Current,
		To:         to,
		Trigger:    trigger,
		Result:     result,
		OccurredAt: now,
	}

	from := doc.Current
	doc.Current = to
	doc.UpdatedAt = now
	if retries != nil {
		doc.Retries = *retries
	}

	if err := m.repo.Apply(ctx, doc, tr); err != nil {
		return DocumentState{}, err
	}
	doc.History = append(doc.History, tr)

	m.logger.Info("document transitioned",
		"document", id,
		"from", from,
		"to", to,
		"trigger", trigger)
	return doc, nil
}
