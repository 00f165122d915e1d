package memory

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/dkeye/Pairup/internal/domain"
)

// WaitingStore expires metadata after ttl. Reads do not extend the lifetime.
type WaitingStore struct {
	cache *ttlcache.Cache[domain.ConnID, domain.WaitingUser]
}

// NewWaitingStore starts the expiry loop; call Close to stop it.
func NewWaitingStore(ttl time.Duration) *WaitingStore {
	cache := ttlcache.New[domain.ConnID, domain.WaitingUser](
		ttlcache.WithTTL[domain.ConnID, domain.WaitingUser](ttl),
		ttlcache.WithDisableTouchOnHit[domain.ConnID, domain.WaitingUser](),
	)
	go cache.Start()
	return &WaitingStore{cache: cache}
}

func (s *WaitingStore) Save(_ context.Context, w domain.WaitingUser) error {
	w.Topics = append([]domain.TopicID(nil), w.Topics...)
	s.cache.Set(w.ID, w, ttlcache.DefaultTTL)
	return nil
}

func (s *WaitingStore) Load(_ context.Context, id domain.ConnID) (domain.WaitingUser, bool, error) {
	item := s.cache.Get(id)
	if item == nil {
		return domain.WaitingUser{}, false, nil
	}
	w := item.Value()
	w.Topics = append([]domain.TopicID(nil), w.Topics...)
	return w, true, nil
}

func (s *WaitingStore) Delete(_ context.Context, id domain.ConnID) error {
	s.cache.Delete(id)
	return nil
}

func (s *WaitingStore) Close() {
	s.cache.Stop()
}
