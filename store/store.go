package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports an unknown document ID.
var ErrNotFound = errors.New("document not found")

// VersionMismatchError reports a failed compare-and-swap update: the
// document's version differed from the caller's expected version. Current
// carries the version observed inside the atomic unit.
type VersionMismatchError struct {
	Expected int
	Current  int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: expected %d, got %d", e.Expected, e.Current)
}

// Document is a point-in-time snapshot of a document. Content is plain
// text; Version starts at 1 and increments by exactly 1 per accepted
// mutation.
type Document struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Version        int       `json:"version"`
	CreatedBy      string    `json:"created_by"`
	LastModifiedBy string    `json:"last_modified_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ChangeRecord is one append-only audit entry. Exactly one record exists
// per accepted mutation, including document creation (FromVersion 0).
// ChangeData holds the raw payload as submitted.
type ChangeRecord struct {
	ID          string          `json:"id"`
	DocID       string          `json:"document_id"`
	ChangeData  json.RawMessage `json:"change_data"`
	AppliedBy   string          `json:"applied_by"`
	AppliedAt   time.Time       `json:"applied_at"`
	FromVersion int             `json:"from_version"`
	ToVersion   int             `json:"to_version"`
}

// DocumentStore abstracts document persistence. Create and Update persist
// the snapshot and its audit record as one atomic unit; Update evaluates
// the version check and the version bump inside that same unit, so when two
// callers race with the same expected version exactly one wins and the
// loser gets *VersionMismatchError.
type DocumentStore interface {
	Create(ctx context.Context, doc Document, rec ChangeRecord) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	Update(ctx context.Context, id, title, content string, expectedVersion int, modifiedBy string, rec ChangeRecord) (*Document, error)
}

// ChangeLog serves the append-only audit history, newest first.
type ChangeLog interface {
	Changes(ctx context.Context, docID string, limit, offset int) ([]ChangeRecord, error)
}
