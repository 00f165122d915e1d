package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// LeaseKey names the pool owner. Liveness and relay are process-local, so one
// process at a time serves a Redis matchmaking pool.
const LeaseKey = "pairup:owner"

var ErrLeaseHeld = errors.New("redis pool is served by another instance")

var (
	renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Lease is an exclusive, self-renewing claim on a key.
type Lease struct {
	rdb   goredis.UniversalClient
	key   string
	owner string
	ttl   time.Duration

	stop     chan struct{}
	done     chan struct{}
	lost     chan struct{}
	lostOnce sync.Once
	release  sync.Once
}

// AcquireLease claims key for owner or fails with ErrLeaseHeld. The lease is
// renewed every ttl/3 until Release.
func AcquireLease(ctx context.Context, rdb goredis.UniversalClient, key, owner string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lease %s: ttl must be positive", key)
	}
	ok, err := rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		holder, _ := rdb.Get(ctx, key).Result()
		return nil, fmt.Errorf("%w (holder %s)", ErrLeaseHeld, holder)
	}
	l := &Lease{
		rdb:   rdb,
		key:   key,
		owner: owner,
		ttl:   ttl,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		lost:  make(chan struct{}),
	}
	go l.keepAlive()
	log.Info().Str("module", "store.redis").Str("key", key).Str("owner", owner).Dur("ttl", ttl).Msg("lease acquired")
	return l, nil
}

// Lost is closed when the key turns out to belong to someone else.
func (l *Lease) Lost() <-chan struct{} { return l.lost }

func (l *Lease) keepAlive() {
	defer close(l.done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("module", "store.redis").Str("key", l.key).Msg("renew lease")
				continue
			}
			if n == 0 {
				log.Error().Str("module", "store.redis").Str("key", l.key).Msg("lease lost")
				l.lostOnce.Do(func() { close(l.lost) })
				return
			}
		}
	}
}

// Release stops renewal and deletes the key if it is still ours.
func (l *Lease) Release(ctx context.Context) error {
	var err error
	l.release.Do(func() {
		close(l.stop)
		<-l.done
		err = releaseScript.Run(ctx, l.rdb, []string{l.key}, l.owner).Err()
		if errors.Is(err, goredis.Nil) {
			err = nil
		}
	})
	return err
}
