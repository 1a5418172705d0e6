package store

import (
	"context"
	"log"
	"sync"
	"time"
)

// BackingStore is what CachedStore flushes to. PutSnapshot and PutChange
// are unconditional writes: by the time a flush happens the cache has
// already arbitrated the version race, so the backing store must not
// re-check versions.
type BackingStore interface {
	DocumentStore
	ChangeLog
	PutSnapshot(ctx context.Context, doc Document) error
	PutChange(ctx context.Context, docID string, rec ChangeRecord) error
}

// dirtyState tracks what needs flushing for a single document.
type dirtyState struct {
	contentDirty   bool // snapshot needs writing to the backing store
	flushedChanges int  // number of change records already flushed
	created        bool // doc created locally but not yet in the backing store
}

// CachedStore wraps a backing store with an in-memory cache. All reads and
// writes are served from the cache, which is authoritative for the version
// compare-and-swap. Dirty documents are flushed to the backing store
// periodically in the background.
type CachedStore struct {
	cache         *MemoryStore
	backing       BackingStore
	mu            sync.Mutex
	dirty         map[string]*dirtyState
	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewCachedStore creates a CachedStore that caches in memory and flushes
// dirty documents to the backing store every flushInterval.
func NewCachedStore(backing BackingStore, flushInterval time.Duration) *CachedStore {
	cs := &CachedStore{
		cache:         NewMemoryStore(),
		backing:       backing,
		dirty:         make(map[string]*dirtyState),
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

func (cs *CachedStore) Create(ctx context.Context, doc Document, rec ChangeRecord) error {
	if err := cs.cache.Create(ctx, doc, rec); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.dirty[doc.ID] = &dirtyState{contentDirty: true, created: true}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Get(ctx context.Context, id string) (*Document, error) {
	doc, err := cs.cache.Get(ctx, id)
	if err == nil {
		return doc, nil
	}
	// Cache miss: load from the backing store.
	if err := cs.loadFromBacking(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Get(ctx, id)
}

func (cs *CachedStore) List(ctx context.Context) ([]Document, error) {
	return cs.backing.List(ctx)
}

func (cs *CachedStore) Update(ctx context.Context, id, title, content string, expectedVersion int, modifiedBy string, rec ChangeRecord) (*Document, error) {
	// Ensure the doc is in the cache so the CAS sees current state.
	if _, err := cs.Get(ctx, id); err != nil {
		return nil, err
	}
	doc, err := cs.cache.Update(ctx, id, title, content, expectedVersion, modifiedBy, rec)
	if err != nil {
		return nil, err
	}
	cs.mu.Lock()
	ds := cs.dirty[id]
	if ds == nil {
		// Doc was clean: everything before this update is already flushed.
		cs.cache.mu.RLock()
		flushed := len(cs.cache.docs[id].changes) - 1
		cs.cache.mu.RUnlock()
		ds = &dirtyState{flushedChanges: flushed}
		cs.dirty[id] = ds
	}
	ds.contentDirty = true
	cs.mu.Unlock()
	return doc, nil
}

func (cs *CachedStore) Changes(ctx context.Context, docID string, limit, offset int) ([]ChangeRecord, error) {
	if _, err := cs.Get(ctx, docID); err != nil {
		return nil, err
	}
	return cs.cache.Changes(ctx, docID, limit, offset)
}

// loadFromBacking loads a document and its change history from the backing
// store into the cache, marking everything loaded as already flushed.
func (cs *CachedStore) loadFromBacking(ctx context.Context, id string) error {
	doc, err := cs.backing.Get(ctx, id)
	if err != nil {
		return err
	}
	newest, err := cs.backing.Changes(ctx, id, 0, 0)
	if err != nil {
		return err
	}
	// The cache keeps oldest-first append order.
	changes := make([]ChangeRecord, len(newest))
	for i, rec := range newest {
		changes[len(newest)-1-i] = rec
	}

	cs.cache.mu.Lock()
	if _, exists := cs.cache.docs[id]; !exists {
		cs.cache.docs[id] = &docRecord{doc: *doc, changes: changes}
	}
	cs.cache.mu.Unlock()

	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedChanges: len(changes)}
	}
	cs.mu.Unlock()

	return nil
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.flush()
			return
		}
	}
}

// flush writes all dirty documents to the backing store.
func (cs *CachedStore) flush() {
	cs.mu.Lock()
	snapshot := make(map[string]*dirtyState, len(cs.dirty))
	for id, ds := range cs.dirty {
		cp := *ds
		snapshot[id] = &cp
	}
	cs.mu.Unlock()

	ctx := context.Background()

	for id, ds := range snapshot {
		cs.cache.mu.RLock()
		rec, ok := cs.cache.docs[id]
		if !ok {
			cs.cache.mu.RUnlock()
			continue
		}
		doc := rec.doc
		totalChanges := len(rec.changes)
		var pending []ChangeRecord
		if ds.flushedChanges < totalChanges {
			pending = make([]ChangeRecord, totalChanges-ds.flushedChanges)
			copy(pending, rec.changes[ds.flushedChanges:])
		}
		cs.cache.mu.RUnlock()

		// A never-flushed doc needs its snapshot in the backing store
		// before change records can attach to it.
		if ds.created {
			if err := cs.backing.PutSnapshot(ctx, doc); err != nil {
				log.Printf("cached store: failed to create doc %q in backing store: %v", id, err)
				continue
			}
			ds.created = false
		}

		// Change records first, then the snapshot, so a crash mid-flush
		// leaves a replayable history rather than a snapshot with missing
		// audit records.
		flushOK := true
		for _, change := range pending {
			if err := cs.backing.PutChange(ctx, id, change); err != nil {
				log.Printf("cached store: failed to flush change %d for doc %q: %v", change.ToVersion, id, err)
				flushOK = false
				break
			}
			ds.flushedChanges++
		}

		if ds.contentDirty && flushOK {
			if err := cs.backing.PutSnapshot(ctx, doc); err != nil {
				log.Printf("cached store: failed to flush snapshot for doc %q: %v", id, err)
			} else {
				ds.contentDirty = false
			}
		}

		cs.mu.Lock()
		cur := cs.dirty[id]
		if cur != nil {
			cur.flushedChanges = ds.flushedChanges
			cur.created = ds.created
			// Only clear contentDirty if no new writes happened since the
			// snapshot was taken.
			if !ds.contentDirty {
				cur.contentDirty = false
			}
			if !cur.contentDirty && !cur.created && cur.flushedChanges >= totalChanges {
				// Re-check the live count: new changes may have arrived.
				cs.cache.mu.RLock()
				if r, ok := cs.cache.docs[id]; ok && cur.flushedChanges >= len(r.changes) {
					delete(cs.dirty, id)
				}
				cs.cache.mu.RUnlock()
			}
		}
		cs.mu.Unlock()
	}
}

// Close signals the flush loop to perform a final flush and waits for it to
// complete.
func (cs *CachedStore) Close() {
	close(cs.stop)
	<-cs.done
}
