package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/referraldesk/internal/domain"
)

// MemStore is an in-process Store with the same optimistic transaction
// semantics as the Redis implementation: every document carries a version,
// transaction bodies record the versions they observed (including absence),
// and commit fails with domain.ErrTransactionAborted if any observed version
// moved. It backs local development when no REDIS_URL is configured and the
// package's tests.
type MemStore struct {
	mu      sync.Mutex
	docs    map[string][]byte // "collection/id" -> JSON
	vers    map[string]uint64 // "collection/id" -> version, survives deletes
	order   map[string][]string
	lastVer uint64
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		docs:  make(map[string][]byte),
		vers:  make(map[string]uint64),
		order: make(map[string][]string),
	}
}

func memKey(collection, id string) string { return collection + "/" + id }

// bump must be called with mu held
func (s *MemStore) bump(key string) {
	s.lastVer++
	s.vers[key] = s.lastVer
}

func (s *MemStore) putLocked(collection, id string, data []byte) {
	key := memKey(collection, id)
	if _, exists := s.docs[key]; !exists {
		s.order[collection] = append(s.order[collection], id)
	}
	s.docs[key] = data
	s.bump(key)
}

func (s *MemStore) deleteLocked(collection, id string) {
	key := memKey(collection, id)
	if _, exists := s.docs[key]; !exists {
		return
	}
	delete(s.docs, key)
	s.bump(key)
	ids := s.order[collection]
	for i, existing := range ids {
		if existing == id {
			s.order[collection] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Get reads a document by id
func (s *MemStore) Get(_ context.Context, collection, id string, dest any) error {
	s.mu.Lock()
	data, ok := s.docs[memKey(collection, id)]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return json.Unmarshal(data, dest)
}

// List returns all documents in insertion order
func (s *MemStore) List(_ context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.order[collection]
	docs := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		if data, ok := s.docs[memKey(collection, id)]; ok {
			docs = append(docs, json.RawMessage(append([]byte(nil), data...)))
		}
	}
	return docs, nil
}

// Query returns documents whose top-level field equals value
func (s *MemStore) Query(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	matched := docs[:0]
	for _, raw := range docs {
		if matchField(raw, field, value) {
			matched = append(matched, raw)
		}
	}
	return matched, nil
}

// Insert stores doc under a fresh uuid and returns it
func (s *MemStore) Insert(_ context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	data, err := withID(doc, id)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	s.mu.Lock()
	s.putLocked(collection, id, data)
	s.mu.Unlock()
	return id, nil
}

// Update replaces an existing document
func (s *MemStore) Update(_ context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[memKey(collection, id)]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	s.putLocked(collection, id, data)
	return nil
}

// Delete removes a document; absent documents are not an error
func (s *MemStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	s.deleteLocked(collection, id)
	s.mu.Unlock()
	return nil
}

// Transact runs fn against a versioned snapshot and commits atomically
func (s *MemStore) Transact(_ context.Context, fn func(tx Tx) error) error {
	t := &memTx{store: s, reads: make(map[string]uint64)}
	if err := fn(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, observed := range t.reads {
		if s.vers[key] != observed {
			return domain.ErrTransactionAborted
		}
	}
	for _, w := range t.writes {
		if w.delete {
			s.deleteLocked(w.collection, w.id)
		} else {
			s.putLocked(w.collection, w.id, w.data)
		}
	}
	return nil
}

// Ping always succeeds for the in-memory store
func (s *MemStore) Ping(context.Context) error { return nil }

type memWrite struct {
	collection string
	id         string
	data       []byte
	delete     bool
}

type memTx struct {
	store  *MemStore
	reads  map[string]uint64 // observed versions; 0 means observed absent
	writes []memWrite
}

func (t *memTx) Get(collection, id string, dest any) error {
	key := memKey(collection, id)
	t.store.mu.Lock()
	t.reads[key] = t.store.vers[key]
	data, ok := t.store.docs[key]
	t.store.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return json.Unmarshal(data, dest)
}

func (t *memTx) Put(collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	t.writes = append(t.writes, memWrite{collection: collection, id: id, data: data})
	return nil
}

func (t *memTx) Delete(collection, id string) {
	t.writes = append(t.writes, memWrite{collection: collection, id: id, delete: true})
}
