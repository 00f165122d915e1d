package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dkeye/Pairup/internal/domain"
)

// WaitingStore keeps waiting-user metadata as JSON strings with a TTL so that
// crashed clients that never disconnect cleanly do not leak.
type WaitingStore struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewWaitingStore(rdb goredis.UniversalClient, ttl time.Duration) *WaitingStore {
	return &WaitingStore{rdb: rdb, ttl: ttl}
}

func waitingKey(id domain.ConnID) string {
	return "waiting:" + string(id)
}

func (s *WaitingStore) Save(ctx context.Context, w domain.WaitingUser) error {
	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode waiting user: %w", err)
	}
	if err := s.rdb.Set(ctx, waitingKey(w.ID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", waitingKey(w.ID), err)
	}
	return nil
}

func (s *WaitingStore) Load(ctx context.Context, id domain.ConnID) (domain.WaitingUser, bool, error) {
	b, err := s.rdb.Get(ctx, waitingKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.WaitingUser{}, false, nil
	}
	if err != nil {
		return domain.WaitingUser{}, false, fmt.Errorf("get %s: %w", waitingKey(id), err)
	}
	var w domain.WaitingUser
	if err := json.Unmarshal(b, &w); err != nil {
		return domain.WaitingUser{}, false, fmt.Errorf("decode %s: %w", waitingKey(id), err)
	}
	return w, true, nil
}

func (s *WaitingStore) Delete(ctx context.Context, id domain.ConnID) error {
	if err := s.rdb.Del(ctx, waitingKey(id)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", waitingKey(id), err)
	}
	return nil
}
