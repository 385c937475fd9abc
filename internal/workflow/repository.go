package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/pkg/repository"
)

// Repository persists document states and their transition histories.
type Repository interface {
	// Create registers a document in its initial state. Returns
	// ErrDocumentExists when the document is already registered.
	Create(ctx context.Context, doc DocumentState) error
	// Get loads a document's state including its full history. Returns
	// ErrDocumentNotFound when the document is unknown.
	Get(ctx context.Context, id uuid.UUID) (DocumentState, error)
	// Apply atomically updates the document's current state and appends the
	// transition to its history.
	Apply(ctx context.Context, doc DocumentState, tr Transition) error
}

// PostgresRepository stores workflow state in PostgreSQL. The transition
// history lives in its own table and is never updated or deleted.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository over the given database.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, doc DocumentState) error {
	query := `
		INSERT INTO document_states (document_id, current_state, retries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	err := repository.ExecExpectOne(ctx, r.db, query,
		doc.DocumentID, string(doc.Current), doc.Retries, doc.CreatedAt, doc.UpdatedAt)
	return repository.MapError(err, ErrDocumentNotFound, ErrDocumentExists)
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (DocumentState, error) {
	query := `
		SELECT document_id, current_state, retries, created_at, updated_at
		FROM document_states
		WHERE document_id = $1`

	doc, err := repository.QueryOne(ctx, r.db, query, []any{id}, scanDocumentState)
	if err != nil {
		return DocumentState{}, repository.MapError(err, ErrDocumentNotFound, ErrDocumentExists)
	}

	history := `
		SELECT id, document_id, from_state, to_state, trigger, result, occurred_at
		FROM document_transitions
		WHERE document_id = $1
		ORDER BY occurred_at, id`

	doc.History, err = repository.QueryMany(ctx, r.db, history, []any{id}, scanTransition)
	if err != nil {
		return DocumentState{}, err
	}
	return doc, nil
}

func (r *PostgresRepository) Apply(ctx context.Context, doc DocumentState, tr Transition) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		update := `
			UPDATE document_states
			SET current_state = $2, retries = $3, updated_at = $4
			WHERE document_id = $1`
		if err := repository.ExecExpectOne(ctx, tx, update,
			doc.DocumentID, string(doc.Current), doc.Retries, doc.UpdatedAt); err != nil {
			return struct{}{}, err
		}

		var result []byte
		if tr.Result != nil {
			encoded, err := json.Marshal(tr.Result)
			if err != nil {
				return struct{}{}, fmt.Errorf("encode transition result: %w", err)
			}
			result = encoded
		}

		insert := `
			INSERT INTO document_transitions (id, document_id, from_state, to_state, trigger, result, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if err := repository.ExecExpectOne(ctx, tx, insert,
			tr.ID, tr.DocumentID, string(tr.From), string(tr.To), tr.Trigger, result, tr.OccurredAt); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	return repository.MapError(err, ErrDocumentNotFound, ErrDocumentExists)
}

func scanDocumentState(s repository.Scanner) (DocumentState, error) {
	var doc DocumentState
	var current string
	if err := s.Scan(&doc.DocumentID, &current, &doc.Retries, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return DocumentState{}, err
	}
	doc.Current = State(current)
	return doc, nil
}

func scanTransition(s repository.Scanner) (Transition, error) {
	var tr Transition
	var from, to string
	var result []byte
	if err := s.Scan(&tr.ID, &tr.DocumentID, &from, &to, &tr.Trigger, &result, &tr.OccurredAt); err != nil {
		return Transition{}, err
	}
	tr.From, tr.To = State(from), State(to)

	if len(result) > 0 {
		var decoded classify.ClassificationResult
		if err := json.Unmarshal(result, &decoded); err != nil {
			return Transition{}, fmt.Errorf("decode transition result: %w", err)
		}
		tr.Result = &decoded
	}
	return tr, nil
}
