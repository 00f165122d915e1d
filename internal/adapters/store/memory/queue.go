// Package memory implements the queue and waiting-user stores in process.
// It serves single-instance deployments and tests; use the redis package
// when more than one server shares the matchmaking pool.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/dkeye/Pairup/internal/domain"
)

type entry struct {
	at int64
	id domain.ConnID
}

func entryLess(a, b entry) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.id < b.id
}

type scopeQueue struct {
	tree  *btree.BTreeG[entry]
	index map[domain.ConnID]int64
}

// QueueStore keeps one B-tree per scope ordered by (joinedAt, id) plus an
// index for O(log n) removal by id. A single mutex makes every call atomic.
type QueueStore struct {
	mu     sync.Mutex
	scopes map[string]*scopeQueue
}

func NewQueueStore() *QueueStore {
	return &QueueStore{scopes: make(map[string]*scopeQueue)}
}

func (s *QueueStore) scope(key string, create bool) *scopeQueue {
	q, ok := s.scopes[key]
	if !ok && create {
		q = &scopeQueue{
			tree:  btree.NewG(16, entryLess),
			index: make(map[domain.ConnID]int64),
		}
		s.scopes[key] = q
	}
	return q
}

// drop forgets empty scopes so long-running processes do not accumulate them.
func (s *QueueStore) drop(key string, q *scopeQueue) {
	if q.tree.Len() == 0 {
		delete(s.scopes, key)
	}
}

func (s *QueueStore) Admit(_ context.Context, scope domain.Scope, id domain.ConnID, joinedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.scope(scope.Key(), true)
	if old, ok := q.index[id]; ok {
		q.tree.Delete(entry{at: old, id: id})
	}
	at := joinedAt.UnixNano()
	q.tree.ReplaceOrInsert(entry{at: at, id: id})
	q.index[id] = at
	return nil
}

func (s *QueueStore) PopOldest(_ context.Context, scope domain.Scope) (domain.ConnID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scope.Key()
	q := s.scope(key, false)
	if q == nil {
		return "", false, nil
	}
	e, ok := q.tree.DeleteMin()
	if !ok {
		s.drop(key, q)
		return "", false, nil
	}
	delete(q.index, e.id)
	s.drop(key, q)
	return e.id, true, nil
}

func (s *QueueStore) Remove(_ context.Context, scope domain.Scope, id domain.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scope.Key()
	q := s.scope(key, false)
	if q == nil {
		return nil
	}
	if at, ok := q.index[id]; ok {
		q.tree.Delete(entry{at: at, id: id})
		delete(q.index, id)
	}
	s.drop(key, q)
	return nil
}

func (s *QueueStore) Cardinality(_ context.Context, scope domain.Scope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.scope(scope.Key(), false)
	if q == nil {
		return 0, nil
	}
	return int64(q.tree.Len()), nil
}
