package workflow

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps workflow state in memory. It backs tests and
// single-process deployments that run without PostgreSQL.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]DocumentState
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[uuid.UUID]DocumentState)}
}

func (r *MemoryRepository) Create(_ context.Context, doc DocumentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[doc.DocumentID]; ok {
		return ErrDocumentExists
	}
	r.docs[doc.DocumentID] = cloneDocument(doc)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (DocumentState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return DocumentState{}, ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

func (r *MemoryRepository) Apply(_ context.Context, doc DocumentState, tr Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.docs[doc.DocumentID]
	if !ok {
		return ErrDocumentNotFound
	}

	stored.Current = doc.Current
	stored.Retries = doc.Retries
	stored.UpdatedAt = doc.UpdatedAt
	stored.History = append(stored.History, tr)
	r.docs[doc.DocumentID] = stored
	return nil
}

func cloneDocument(doc DocumentState) DocumentState {
	clone := doc
	clone.History = make([]Transition, len(doc.History))
	copy(clone.History, doc.History)
	return clone
}
