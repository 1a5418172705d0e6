package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is a Firestore-backed implementation of DocumentStore and
// ChangeLog. Snapshots live in a documents collection; each document's
// audit records live in a "changes" subcollection keyed by zero-padded
// target version, so document order is creation order. Updates run inside a
// Firestore transaction: the version check, version bump, and change-record
// write commit as one unit.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a FirestoreStore using the given client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: "documents",
	}
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) changesCollection(docID string) *firestore.CollectionRef {
	return s.docRef(docID).Collection("changes")
}

func zeroPad(version int) string {
	return fmt.Sprintf("%010d", version)
}

func docData(doc Document) map[string]interface{} {
	return map[string]interface{}{
		"title":          doc.Title,
		"content":        doc.Content,
		"version":        doc.Version,
		"createdBy":      doc.CreatedBy,
		"lastModifiedBy": doc.LastModifiedBy,
		"createdAt":      doc.CreatedAt,
		"updatedAt":      doc.UpdatedAt,
	}
}

func changeData(rec ChangeRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":          rec.ID,
		"changeData":  string(rec.ChangeData),
		"appliedBy":   rec.AppliedBy,
		"appliedAt":   rec.AppliedAt,
		"fromVersion": rec.FromVersion,
		"toVersion":   rec.ToVersion,
	}
}

func (s *FirestoreStore) Create(ctx context.Context, doc Document, rec ChangeRecord) error {
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(s.docRef(doc.ID), docData(doc)); err != nil {
			return err
		}
		return tx.Create(s.changesCollection(doc.ID).Doc(zeroPad(rec.ToVersion)), changeData(rec))
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("document %q already exists", doc.ID)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*Document, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocument(id, snap), nil
}

func snapshotToDocument(id string, snap *firestore.DocumentSnapshot) *Document {
	data := snap.Data()
	title, _ := data["title"].(string)
	content, _ := data["content"].(string)
	version, _ := data["version"].(int64)
	createdBy, _ := data["createdBy"].(string)
	lastModifiedBy, _ := data["lastModifiedBy"].(string)
	createdAt, _ := data["createdAt"].(time.Time)
	updatedAt, _ := data["updatedAt"].(time.Time)
	return &Document{
		ID:             id,
		Title:          title,
		Content:        content,
		Version:        int(version),
		CreatedBy:      createdBy,
		LastModifiedBy: lastModifiedBy,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

func (s *FirestoreStore) List(ctx context.Context) ([]Document, error) {
	iter := s.client.Collection(s.collection).
		OrderBy("updatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var result []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *snapshotToDocument(snap.Ref.ID, snap))
	}
	return result, nil
}

func (s *FirestoreStore) Update(ctx context.Context, id, title, content string, expectedVersion int, modifiedBy string, rec ChangeRecord) (*Document, error) {
	var updated Document
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.docRef(id))
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		current := snapshotToDocument(id, snap)
		if current.Version != expectedVersion {
			return &VersionMismatchError{Expected: expectedVersion, Current: current.Version}
		}

		updated = *current
		updated.Title = title
		updated.Content = content
		updated.Version = expectedVersion + 1
		updated.LastModifiedBy = modifiedBy
		updated.UpdatedAt = time.Now()

		if err := tx.Set(s.docRef(id), docData(updated)); err != nil {
			return err
		}
		return tx.Create(s.changesCollection(id).Doc(zeroPad(rec.ToVersion)), changeData(rec))
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *FirestoreStore) Changes(ctx context.Context, docID string, limit, offset int) ([]ChangeRecord, error) {
	// Verify the document exists so an unknown ID is NotFound, not an
	// empty history.
	if _, err := s.Get(ctx, docID); err != nil {
		return nil, err
	}

	q := s.changesCollection(docID).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []ChangeRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, snapshotToChange(docID, snap))
	}
	return out, nil
}

func snapshotToChange(docID string, snap *firestore.DocumentSnapshot) ChangeRecord {
	data := snap.Data()
	id, _ := data["id"].(string)
	raw, _ := data["changeData"].(string)
	appliedBy, _ := data["appliedBy"].(string)
	appliedAt, _ := data["appliedAt"].(time.Time)
	fromVersion, _ := data["fromVersion"].(int64)
	toVersion, _ := data["toVersion"].(int64)
	return ChangeRecord{
		ID:          id,
		DocID:       docID,
		ChangeData:  []byte(raw),
		AppliedBy:   appliedBy,
		AppliedAt:   appliedAt,
		FromVersion: int(fromVersion),
		ToVersion:   int(toVersion),
	}
}

// PutSnapshot unconditionally overwrites a snapshot, for CachedStore
// flushes where the cache already arbitrated the version race.
func (s *FirestoreStore) PutSnapshot(ctx context.Context, doc Document) error {
	_, err := s.docRef(doc.ID).Set(ctx, docData(doc))
	return err
}

// PutChange writes one change record, keyed by its target version so
// re-flushing after a partial failure is idempotent.
func (s *FirestoreStore) PutChange(ctx context.Context, docID string, rec ChangeRecord) error {
	_, err := s.changesCollection(docID).Doc(zeroPad(rec.ToVersion)).Set(ctx, changeData(rec))
	return err
}
