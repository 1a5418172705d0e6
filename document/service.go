// Package document coordinates document mutations: validation, optimistic
// version gating, OT application, and atomic persistence with audit
// records. Storage, identity resolution, and transport are collaborators
// behind interfaces.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/yashnalla/document-service-sub000/identity"
	"github.com/yashnalla/document-service-sub000/ot"
	"github.com/yashnalla/document-service-sub000/store"
)

const maxTitleLen = 255

// RawChange is one entry of a change submission, exactly as it appears on
// the wire. It is kept verbatim in the audit record.
type RawChange struct {
	Operation string `json:"operation"`
	Length    int    `json:"length,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Preview is the result of applying changes without persisting them.
type Preview struct {
	OriginalText   string `json:"original_text"`
	PreviewText    string `json:"preview_text"`
	OperationCount int    `json:"operation_count"`
}

// PreviewResult wraps a preview with the document it was computed against.
type PreviewResult struct {
	DocumentID     string  `json:"document_id"`
	CurrentVersion int     `json:"current_version"`
	Preview        Preview `json:"preview"`
}

// Service is the single mutation path for documents.
type Service struct {
	docs    store.DocumentStore
	changes store.ChangeLog
	ids     identity.Resolver
}

func NewService(docs store.DocumentStore, changes store.ChangeLog, ids identity.Resolver) *Service {
	return &Service{docs: docs, changes: changes, ids: ids}
}

// changesToSequence validates a raw change batch and converts it to an
// applicable sequence. Any invalid entry fails the whole batch with a
// *ValidationError naming its index.
func changesToSequence(changes []RawChange) (ot.Sequence, error) {
	if len(changes) == 0 {
		return nil, &ValidationError{Index: -1, Reason: "at least one operation is required"}
	}
	seq := make(ot.Sequence, 0, len(changes))
	for i, c := range changes {
		op := ot.Op{Kind: ot.Kind(c.Operation), Length: c.Length, Content: c.Content}
		if err := op.Validate(); err != nil {
			return nil, &ValidationError{Index: i, Reason: err.Error()}
		}
		seq = append(seq, op)
	}
	return seq, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Index: -1, Reason: "title cannot be empty"}
	}
	if len(title) > maxTitleLen {
		return "", &ValidationError{Index: -1, Reason: fmt.Sprintf("title cannot exceed %d characters", maxTitleLen)}
	}
	return title, nil
}

// Create makes a new document at version 1 together with its creation
// change record, attributed to the caller (or the anonymous identity).
func (s *Service) Create(ctx context.Context, title, content, token string) (*store.Document, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}

	who := s.ids.Resolve(ctx, token)
	now := time.Now()
	doc := store.Document{
		ID:             uuid.NewString(),
		Title:          title,
		Content:        normalizeLineEndings(strings.TrimSpace(content)),
		Version:        1,
		CreatedBy:      who.Name,
		LastModifiedBy: who.Name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rec := store.ChangeRecord{
		ID:          xid.New().String(),
		DocID:       doc.ID,
		ChangeData:  json.RawMessage(`{"operation":"create","initial_content":true}`),
		AppliedBy:   who.Name,
		AppliedAt:   now,
		FromVersion: 0,
		ToVersion:   1,
	}
	if err := s.docs.Create(ctx, doc, rec); err != nil {
		return nil, err
	}
	log.Printf("document %s: created by %s", doc.ID, who.Name)
	return &doc, nil
}

// Get returns the current snapshot of a document.
func (s *Service) Get(ctx context.Context, docID string) (*store.Document, error) {
	return s.docs.Get(ctx, docID)
}

// List returns all documents, most recently updated first.
func (s *Service) List(ctx context.Context) ([]store.Document, error) {
	return s.docs.List(ctx)
}

// ApplyChanges validates a change batch, gates it on the expected version,
// applies it to the current text, and persists the result with exactly one
// new change record. The version check and bump are evaluated atomically by
// the store, so of two callers racing with the same expected version
// exactly one succeeds; the loser gets *ConflictError and must re-fetch
// and retry.
func (s *Service) ApplyChanges(ctx context.Context, docID string, changes []RawChange, token string, expectedVersion int) (*store.Document, error) {
	seq, err := changesToSequence(changes)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Version != expectedVersion {
		return nil, &ConflictError{CurrentVersion: doc.Version}
	}

	newText, err := seq.Apply(doc.Content)
	if err != nil {
		// An overrun means the submitted operations do not fit the text
		// they claim to edit. Nothing has been persisted.
		var oor *ot.OutOfRangeError
		if errors.As(err, &oor) {
			return nil, &ValidationError{Index: -1, Reason: err.Error()}
		}
		return nil, err
	}

	who := s.ids.Resolve(ctx, token)
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("encode change payload: %w", err)
	}
	rec := store.ChangeRecord{
		ID:          xid.New().String(),
		DocID:       docID,
		ChangeData:  raw,
		AppliedBy:   who.Name,
		AppliedAt:   time.Now(),
		FromVersion: expectedVersion,
		ToVersion:   expectedVersion + 1,
	}

	updated, err := s.docs.Update(ctx, docID, doc.Title, newText, expectedVersion, who.Name, rec)
	if err != nil {
		var vm *store.VersionMismatchError
		if errors.As(err, &vm) {
			return nil, &ConflictError{CurrentVersion: vm.Current}
		}
		return nil, err
	}
	log.Printf("document %s: %d operations applied by %s (v%d -> v%d)",
		docID, len(changes), who.Name, expectedVersion, updated.Version)
	return updated, nil
}

// Preview runs the validate-and-apply pipeline against the current text
// without a version check and without persisting anything.
func (s *Service) Preview(ctx context.Context, docID string, changes []RawChange) (*PreviewResult, error) {
	seq, err := changesToSequence(changes)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}

	previewText, err := seq.Apply(doc.Content)
	if err != nil {
		var oor *ot.OutOfRangeError
		if errors.As(err, &oor) {
			return nil, &ValidationError{Index: -1, Reason: err.Error()}
		}
		return nil, err
	}

	return &PreviewResult{
		DocumentID:     doc.ID,
		CurrentVersion: doc.Version,
		Preview: Preview{
			OriginalText:   doc.Content,
			PreviewText:    previewText,
			OperationCount: len(seq),
		},
	}, nil
}

// normalizeLineEndings collapses \r\n and lone \r to \n. Diffing across
// mixed line endings is not meaningful.
func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// UpdateFromFullText is the diff bridge for callers that submit a whole new
// text instead of incremental operations. The submitted text is normalized
// and diffed against the document's stored content exactly as ApplyChanges
// will read it, so the payload's retain and delete lengths always span the
// real bytes; stray \r in stored content lands in the changed middle and is
// deleted, converging the document to the canonical form. The merged payload
// is re-applied as a self-check and then fed through the same version-gated
// ApplyChanges pipeline.
func (s *Service) UpdateFromFullText(ctx context.Context, docID, newText, token string, expectedVersion int) (*store.Document, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	normNew := normalizeLineEndings(newText)

	seq := ot.Diff(doc.Content, normNew).Merge()
	if len(seq) == 0 {
		// Both texts empty: nothing to submit.
		return doc, nil
	}

	// The payload must reproduce the submitted text exactly. A mismatch is
	// an internal invariant violation and must never be persisted.
	check, err := seq.Apply(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiffSelfCheck, err)
	}
	if check != normNew {
		return nil, fmt.Errorf("%w: payload reproduces %q, want %q", ErrDiffSelfCheck, check, normNew)
	}

	changes := make([]RawChange, len(seq))
	for i, op := range seq {
		changes[i] = RawChange{Operation: string(op.Kind), Length: op.Length, Content: op.Content}
	}
	return s.ApplyChanges(ctx, docID, changes, token, expectedVersion)
}

// Rename updates a document's title under the same version gate as content
// changes, producing its own change record.
func (s *Service) Rename(ctx context.Context, docID, title, token string, expectedVersion int) (*store.Document, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Version != expectedVersion {
		return nil, &ConflictError{CurrentVersion: doc.Version}
	}

	who := s.ids.Resolve(ctx, token)
	raw, err := json.Marshal(map[string]any{
		"title_change": map[string]string{"from": doc.Title, "to": title},
	})
	if err != nil {
		return nil, fmt.Errorf("encode change payload: %w", err)
	}
	rec := store.ChangeRecord{
		ID:          xid.New().String(),
		DocID:       docID,
		ChangeData:  raw,
		AppliedBy:   who.Name,
		AppliedAt:   time.Now(),
		FromVersion: expectedVersion,
		ToVersion:   expectedVersion + 1,
	}

	updated, err := s.docs.Update(ctx, docID, title, doc.Content, expectedVersion, who.Name, rec)
	if err != nil {
		var vm *store.VersionMismatchError
		if errors.As(err, &vm) {
			return nil, &ConflictError{CurrentVersion: vm.Current}
		}
		return nil, err
	}
	return updated, nil
}

// History returns a document's change records, newest first. A limit of 0
// means no limit.
func (s *Service) History(ctx context.Context, docID string, limit, offset int) ([]store.ChangeRecord, error) {
	return s.changes.Changes(ctx, docID, limit, offset)
}
