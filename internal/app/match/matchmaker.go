// Package match pairs waiting users by topic overlap with oldest-first fairness.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

// Match is a successful pairing. A is the first candidate found and becomes
// the initiator; both records are the metadata as it was when queued.
type Match struct {
	A domain.WaitingUser
	B domain.WaitingUser
}

type Matchmaker struct {
	Queue   core.QueueStore
	Waiting core.WaitingStore

	now func() time.Time
}

func New(queue core.QueueStore, waiting core.WaitingStore) *Matchmaker {
	return &Matchmaker{Queue: queue, Waiting: waiting, now: time.Now}
}

// load reads the metadata of a popped live id. When it expired, a record is
// rebuilt from the oracle if it can tell what id is waiting for.
func (m *Matchmaker) load(ctx context.Context, id domain.ConnID, oracle core.LivenessOracle) (domain.WaitingUser, bool, error) {
	w, found, err := m.Waiting.Load(ctx, id)
	if err != nil || found {
		return w, found, err
	}
	if r, ok := oracle.(core.WaitingRecoverer); ok {
		if w, ok := r.RecoverWaiting(id); ok {
			log.Info().Str("module", "app.match").Str("conn", string(id)).Msg("recovered expired metadata")
			return w, true, nil
		}
	}
	return domain.WaitingUser{}, false, nil
}

// FindMatch searches the scopes of (channel, mode, topics) for two live users.
// Both users of a returned Match are already removed from every queue they
// occupied and their metadata is deleted.
func (m *Matchmaker) FindMatch(
	ctx context.Context,
	channel domain.ChannelID,
	mode domain.Mode,
	topics []domain.TopicID,
	oracle core.LivenessOracle,
) (Match, bool, error) {
	a, ok, err := m.findAnchor(ctx, channel, mode, topics, oracle)
	if err != nil || !ok {
		return Match{}, false, err
	}

	shared := domain.IntersectTopics(topics, a.Topics)
	peerB, ok, err := m.popLive(ctx, channel, mode, shared, oracle, a.ID)
	if err != nil || !ok {
		if rerr := m.Enqueue(ctx, a); rerr != nil {
			log.Error().Err(rerr).Str("module", "app.match").Str("conn", string(a.ID)).Msg("restore anchor failed")
		}
		return Match{}, false, err
	}

	b, found, err := m.load(ctx, peerB, oracle)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.match").Str("conn", string(peerB)).Msg("load partner metadata")
	}
	if !found {
		// nothing remembers peerB's selection; clean what we can see and
		// queue it behind everyone already waiting if it must be put back
		b = domain.WaitingUser{ID: peerB, Channel: channel, Mode: mode, Topics: shared, JoinedAt: m.now()}
	}

	m.Evict(ctx, a)
	m.Evict(ctx, b)

	log.Info().
		Str("module", "app.match").
		Str("a", string(a.ID)).
		Str("b", string(b.ID)).
		Str("channel", string(channel)).
		Str("mode", string(mode)).
		Msg("matched")
	return Match{A: a, B: b}, true, nil
}

// findAnchor pops the first live candidate whose record, stored or
// recovered, is for this channel and mode. Candidates without one are stale
// and discarded.
func (m *Matchmaker) findAnchor(
	ctx context.Context,
	channel domain.ChannelID,
	mode domain.Mode,
	topics []domain.TopicID,
	oracle core.LivenessOracle,
) (domain.WaitingUser, bool, error) {
	for {
		id, ok, err := m.popLive(ctx, channel, mode, topics, oracle, "")
		if err != nil || !ok {
			return domain.WaitingUser{}, false, err
		}
		w, found, err := m.load(ctx, id, oracle)
		if err != nil {
			return domain.WaitingUser{}, false, fmt.Errorf("load anchor %s: %w", id, err)
		}
		if !found || w.Channel != channel || w.Mode != mode {
			log.Debug().Str("module", "app.match").Str("conn", string(id)).Msg("discard anchor without metadata")
			continue
		}
		return w, true, nil
	}
}

// popLive walks topics in order and pops each scope oldest-first until it
// finds a live connection other than skip. Dead and skipped entries are not
// re-admitted.
func (m *Matchmaker) popLive(
	ctx context.Context,
	channel domain.ChannelID,
	mode domain.Mode,
	topics []domain.TopicID,
	oracle core.LivenessOracle,
	skip domain.ConnID,
) (domain.ConnID, bool, error) {
	for _, t := range topics {
		scope := domain.Scope{Channel: channel, Mode: mode, Topic: t}
		for {
			id, ok, err := m.Queue.PopOldest(ctx, scope)
			if err != nil {
				return "", false, err
			}
			if !ok {
				break
			}
			if id == skip {
				continue
			}
			if !oracle.IsLive(id) {
				log.Debug().Str("module", "app.match").Str("conn", string(id)).Str("scope", scope.Key()).Msg("discard dead entry")
				continue
			}
			return id, true, nil
		}
	}
	return "", false, nil
}

// Enqueue puts w into every queue it selected with priority w.JoinedAt. It is
// used for admission and for restoring a peer with its original JoinedAt.
// Metadata is written first so it always outlives the queue entries.
func (m *Matchmaker) Enqueue(ctx context.Context, w domain.WaitingUser) error {
	if err := m.Waiting.Save(ctx, w); err != nil {
		return fmt.Errorf("save %s: %w", w.ID, err)
	}
	for _, scope := range w.Scopes() {
		if err := m.Queue.Admit(ctx, scope, w.ID, w.JoinedAt); err != nil {
			return fmt.Errorf("admit %s to %s: %w", w.ID, scope.Key(), err)
		}
	}
	return nil
}

// Evict removes w from all its queues, then drops its metadata.
// Missing entries are not an error.
func (m *Matchmaker) Evict(ctx context.Context, w domain.WaitingUser) {
	for _, scope := range w.Scopes() {
		if err := m.Queue.Remove(ctx, scope, w.ID); err != nil {
			log.Warn().Err(err).Str("module", "app.match").Str("conn", string(w.ID)).Str("scope", scope.Key()).Msg("remove entry")
		}
	}
	if err := m.Waiting.Delete(ctx, w.ID); err != nil {
		log.Warn().Err(err).Str("module", "app.match").Str("conn", string(w.ID)).Msg("delete metadata")
	}
}
