// Package memstore is an in-process document store with the same session
// semantics as the SQL stores: staged writes, optimistic validation at
// commit, and nothing visible before commit.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"pollstack/internal/platform/txcoord"
)

var (
	errDocumentNotFound = errors.New("document not found")
	errVersionMismatch  = errors.New("document changed since it was read")
	errDuplicateKey     = errors.New("document key already exists")
)

type record struct {
	data    []byte
	version int64
}

type Store struct {
	mu          sync.RWMutex
	id          txcoord.StoreID
	collections map[string]map[string]record
	commitHook  func(ctx context.Context) error
}

func New(id txcoord.StoreID) *Store {
	return &Store{
		id:          id,
		collections: make(map[string]map[string]record),
	}
}

func (s *Store) ID() txcoord.StoreID {
	return s.id
}

func (s *Store) OpenSession(ctx context.Context) (txcoord.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, txcoord.NewStoreError(s.id, txcoord.KindTransient, "open_session", err)
	}
	return &Session{
		store:    s,
		observed: make(map[docKey]int64),
		writes:   make(map[docKey]stagedWrite),
	}, nil
}

// SetCommitHook installs fn to run before every commit; a non-nil error
// fails that commit without applying anything.
func (s *Store) SetCommitHook(fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = fn
}

// Seed writes a committed document outside any session.
func (s *Store) Seed(collection string, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collection(collection)
	docs[key] = record{data: data, version: docs[key].version + 1}
	return nil
}

// Read returns the committed document outside any session.
func Read[T any](s *Store, collection string, key string) (T, error) {
	var out T
	s.mu.RLock()
	rec, ok := s.collections[collection][key]
	s.mu.RUnlock()
	if !ok {
		return out, txcoord.NewStoreError(s.id, txcoord.KindNotFound, "read "+collection, errDocumentNotFound)
	}
	if err := json.Unmarshal(rec.data, &out); err != nil {
		return out, txcoord.NewStoreError(s.id, txcoord.KindFatal, "decode "+collection, err)
	}
	return out, nil
}

// ReadAll returns every committed document of collection ordered by key.
func ReadAll[T any](s *Store, collection string) ([]T, error) {
	s.mu.RLock()
	docs := s.collections[collection]
	keys := make([]string, 0, len(docs))
	for key := range docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	raw := make([][]byte, 0, len(keys))
	for _, key := range keys {
		raw = append(raw, docs[key].data)
	}
	s.mu.RUnlock()

	out := make([]T, 0, len(raw))
	for _, data := range raw {
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, txcoord.NewStoreError(s.id, txcoord.KindFatal, "decode "+collection, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Store) collection(name string) map[string]record {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]record)
		s.collections[name] = docs
	}
	return docs
}

func (s *Store) version(key docKey) (int64, bool) {
	rec, ok := s.collections[key.collection][key.id]
	return rec.version, ok
}

func (s *Store) commit(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitHook != nil {
		if err := s.commitHook(ctx); err != nil {
			return err
		}
	}

	for key, seen := range sess.observed {
		current, _ := s.version(key)
		if current != seen {
			return txcoord.NewStoreError(s.id, txcoord.KindConflict, "commit "+key.collection, errVersionMismatch)
		}
	}
	for _, key := range sess.order {
		write := sess.writes[key]
		if !write.insert {
			continue
		}
		if _, exists := s.version(key); exists {
			return txcoord.NewStoreError(s.id, txcoord.KindConflict, "commit "+key.collection, errDuplicateKey)
		}
	}

	for _, key := range sess.order {
		write := sess.writes[key]
		docs := s.collection(key.collection)
		docs[key.id] = record{data: write.data, version: docs[key.id].version + 1}
	}
	return nil
}
