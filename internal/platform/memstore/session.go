package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"pollstack/internal/platform/txcoord"
)

type docKey struct {
	collection string
	id         string
}

type stagedWrite struct {
	data   []byte
	insert bool
}

// Session stages writes until Commit. Every document read through the
// session is version-checked at commit time.
type Session struct {
	mu       sync.Mutex
	store    *Store
	observed map[docKey]int64
	writes   map[docKey]stagedWrite
	order    []docKey
	closed   bool
}

// AsSession unwraps a coordinator session opened by a memstore.
func AsSession(sess txcoord.Session) (*Session, error) {
	memSess, ok := sess.(*Session)
	if !ok || memSess == nil {
		return nil, fmt.Errorf("session %T is not a memstore session", sess)
	}
	return memSess, nil
}

func (s *Session) StoreID() txcoord.StoreID {
	return s.store.id
}

func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txcoord.NewStoreError(s.store.id, txcoord.KindFatal, "commit", txcoord.ErrSessionClosed)
	}
	s.closed = true
	if err := ctx.Err(); err != nil {
		return txcoord.NewStoreError(s.store.id, txcoord.KindTransient, "commit", err)
	}
	return s.store.commit(ctx, s)
}

func (s *Session) Abort(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txcoord.ErrSessionClosed
	}
	s.closed = true
	s.writes = nil
	s.order = nil
	return nil
}

// Get reads a document, preferring this session's staged write.
func Get[T any](s *Session, collection string, key string) (T, error) {
	var out T
	data, err := s.load(collection, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, txcoord.NewStoreError(s.store.id, txcoord.KindFatal, "decode "+collection, err)
	}
	return out, nil
}

// List returns every document of collection matching keep, ordered by key,
// with staged writes overlaid on committed state.
func List[T any](s *Session, collection string, keep func(T) bool) ([]T, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, txcoord.NewStoreError(s.store.id, txcoord.KindFatal, "list "+collection, txcoord.ErrSessionClosed)
	}
	merged := make(map[string][]byte)
	s.store.mu.RLock()
	for id, rec := range s.store.collections[collection] {
		merged[id] = rec.data
	}
	s.store.mu.RUnlock()
	for key, write := range s.writes {
		if key.collection == collection {
			merged[key.id] = write.data
		}
	}
	s.mu.Unlock()

	keys := make([]string, 0, len(merged))
	for id := range merged {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, id := range keys {
		var item T
		if err := json.Unmarshal(merged[id], &item); err != nil {
			return nil, txcoord.NewStoreError(s.store.id, txcoord.KindFatal, "decode "+collection, err)
		}
		if keep == nil || keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Put stages an upsert of the document.
func (s *Session) Put(collection string, key string, value any) error {
	return s.stage(collection, key, value, false)
}

// Insert stages a create; commit fails with a conflict if the key exists by then.
func (s *Session) Insert(collection string, key string, value any) error {
	s.mu.Lock()
	k := docKey{collection: collection, id: key}
	_, staged := s.writes[k]
	s.store.mu.RLock()
	_, exists := s.store.version(k)
	s.store.mu.RUnlock()
	s.mu.Unlock()
	if staged || exists {
		return txcoord.NewStoreError(s.store.id, txcoord.KindConflict, "insert "+collection, errDuplicateKey)
	}
	return s.stage(collection, key, value, true)
}

func (s *Session) load(collection string, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, txcoord.NewStoreError(s.store.id, txcoord.KindFatal, "get "+collection, txcoord.ErrSessionClosed)
	}
	k := docKey{collection: collection, id: key}
	if write, ok := s.writes[k]; ok {
		return write.data, nil
	}

	s.store.mu.RLock()
	rec, ok := s.store.collections[collection][key]
	s.store.mu.RUnlock()

	if _, seen := s.observed[k]; !seen {
		s.observed[k] = rec.version
	}
	if !ok {
		return nil, txcoord.NewStoreError(s.store.id, txcoord.KindNotFound, "get "+collection, errDocumentNotFound)
	}
	return rec.data, nil
}

func (s *Session) stage(collection string, key string, value any, insert bool) error {
	data, err := json.Marshal(value)
	if err != nil {
		return txcoord.NewStoreError(s.store.id, txcoord.KindFatal, "encode "+collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txcoord.NewStoreError(s.store.id, txcoord.KindFatal, "write "+collection, txcoord.ErrSessionClosed)
	}
	k := docKey{collection: collection, id: key}
	if existing, ok := s.writes[k]; ok {
		insert = existing.insert
	} else {
		s.order = append(s.order, k)
	}
	s.writes[k] = stagedWrite{data: data, insert: insert}
	return nil
}
