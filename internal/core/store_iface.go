package core

import (
	"context"
	"time"

	"github.com/dkeye/Pairup/internal/domain"
)

// QueueStore is an ordered membership store keyed by scope.
// Every method must be atomic with respect to concurrent callers,
// including callers in other processes sharing the same backend.
type QueueStore interface {
	// Admit inserts id with priority joinedAt, or moves an existing entry to joinedAt.
	Admit(ctx context.Context, scope domain.Scope, id domain.ConnID, joinedAt time.Time) error
	// PopOldest removes and returns the entry with the smallest priority.
	PopOldest(ctx context.Context, scope domain.Scope) (domain.ConnID, bool, error)
	Remove(ctx context.Context, scope domain.Scope, id domain.ConnID) error
	Cardinality(ctx context.Context, scope domain.Scope) (int64, error)
}

// WaitingStore keeps the metadata of waiting users with automatic expiry.
type WaitingStore interface {
	Save(ctx context.Context, w domain.WaitingUser) error
	Load(ctx context.Context, id domain.ConnID) (domain.WaitingUser, bool, error)
	Delete(ctx context.Context, id domain.ConnID) error
}

// LivenessOracle answers whether a connection is still bound to this service.
type LivenessOracle interface {
	IsLive(id domain.ConnID) bool
}

// WaitingRecoverer is implemented by oracles that remember what a live waiting
// connection asked for, so a record whose stored metadata expired can be rebuilt.
type WaitingRecoverer interface {
	RecoverWaiting(id domain.ConnID) (domain.WaitingUser, bool)
}

// LivenessFunc adapts a plain function to LivenessOracle.
type LivenessFunc func(id domain.ConnID) bool

func (f LivenessFunc) IsLive(id domain.ConnID) bool { return f(id) }
