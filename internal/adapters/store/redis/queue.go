// Package redis backs the queue and waiting-user stores with Redis so the pool
// survives process restarts. Liveness and relay stay in the serving process,
// so a pool has a single serving instance at a time; AcquireLease enforces it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dkeye/Pairup/internal/domain"
)

// QueueStore keeps one sorted set per scope; the score is the enqueue time in
// milliseconds. ZPOPMIN gives the atomic oldest-first pop.
type QueueStore struct {
	rdb goredis.UniversalClient
}

func NewQueueStore(rdb goredis.UniversalClient) *QueueStore {
	return &QueueStore{rdb: rdb}
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func (s *QueueStore) Admit(ctx context.Context, scope domain.Scope, id domain.ConnID, joinedAt time.Time) error {
	err := s.rdb.ZAdd(ctx, scope.Key(), goredis.Z{Score: score(joinedAt), Member: string(id)}).Err()
	if err != nil {
		return fmt.Errorf("zadd %s: %w", scope.Key(), err)
	}
	return nil
}

func (s *QueueStore) PopOldest(ctx context.Context, scope domain.Scope) (domain.ConnID, bool, error) {
	res, err := s.rdb.ZPopMin(ctx, scope.Key(), 1).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("zpopmin %s: %w", scope.Key(), err)
	}
	if len(res) == 0 {
		return "", false, nil
	}
	member, ok := res[0].Member.(string)
	if !ok {
		return "", false, fmt.Errorf("zpopmin %s: unexpected member type %T", scope.Key(), res[0].Member)
	}
	return domain.ConnID(member), true, nil
}

func (s *QueueStore) Remove(ctx context.Context, scope domain.Scope, id domain.ConnID) error {
	if err := s.rdb.ZRem(ctx, scope.Key(), string(id)).Err(); err != nil {
		return fmt.Errorf("zrem %s: %w", scope.Key(), err)
	}
	return nil
}

func (s *QueueStore) Cardinality(ctx context.Context, scope domain.Scope) (int64, error) {
	n, err := s.rdb.ZCard(ctx, scope.Key()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", scope.Key(), err)
	}
	return n, nil
}
