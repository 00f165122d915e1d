package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/app/match"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

// maxPairAttempts bounds the match rounds one admission runs. A round may
// pair two older waiters instead, or hit a peer that died in between.
const maxPairAttempts = 8

// AdmitRequest is the raw client selection; anything unknown is defaulted.
type AdmitRequest struct {
	Channel string
	Mode    string
	Topics  []string
}

// Admit queues id under the normalized selection and tries to match it.
// Admitting while paired ends the current session first.
func (o *Orchestrator) Admit(ctx context.Context, id domain.ConnID, req AdmitRequest) {
	ch, mode, topics := o.Catalog.Normalize(req.Channel, req.Mode, req.Topics)
	o.admit(ctx, id, app.Preferences{Channel: ch, Mode: mode, Topics: topics})
}

// Next ends the current session and queues again with the last selection.
func (o *Orchestrator) Next(ctx context.Context, id domain.ConnID) {
	prefs, ok := o.Registry.Preferences(id)
	if !ok {
		ch, mode, topics := o.Catalog.Normalize("", "", nil)
		prefs = app.Preferences{Channel: ch, Mode: mode, Topics: topics}
	}
	o.admit(ctx, id, prefs)
}

// Leave ends the current session or search without queueing again.
func (o *Orchestrator) Leave(ctx context.Context, id domain.ConnID) {
	if !o.Registry.IsLive(id) {
		return
	}
	o.teardown(ctx, id, domain.EndReasonLeave)
	log.Info().Str("module", "orch").Str("conn", string(id)).Msg("left")
}

func (o *Orchestrator) admit(ctx context.Context, id domain.ConnID, prefs app.Preferences) {
	if !o.Registry.IsLive(id) {
		return
	}
	w := domain.WaitingUser{
		ID:       id,
		Channel:  prefs.Channel,
		Mode:     prefs.Mode,
		Topics:   prefs.Topics,
		JoinedAt: o.now(),
	}

	if state, _ := o.Registry.State(id); state == domain.StatePaired {
		o.teardown(ctx, id, domain.EndReasonNext)
	}

	prev, waiting, err := o.Matcher.Waiting.Load(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("load waiting metadata")
	}
	if waiting {
		if prev.SameQueues(w) {
			// still in line for the same queues: keep its place
			w.JoinedAt = prev.JoinedAt
		} else {
			o.Matcher.Evict(ctx, prev)
		}
	}

	// waiting before the entries exist, so a concurrent match can take us
	o.Registry.SetPreferences(id, prefs)
	o.Registry.SetWaiting(id, w)
	o.setState(id, domain.StateWaiting)
	if err := o.Matcher.Enqueue(ctx, w); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("enqueue")
		o.Matcher.Evict(ctx, w)
		o.setState(id, domain.StateIdle)
		return
	}
	o.send(id, WaitingEvent{Type: TypeWaiting, Channel: w.Channel, Mode: w.Mode, Topics: w.Topics})
	log.Info().
		Str("module", "orch").
		Str("conn", string(id)).
		Str("channel", string(w.Channel)).
		Str("mode", string(w.Mode)).
		Int("topics", len(w.Topics)).
		Msg("admitted")

	o.tryMatch(ctx, w)
}

func (o *Orchestrator) tryMatch(ctx context.Context, w domain.WaitingUser) {
	for attempt := 0; attempt < maxPairAttempts; attempt++ {
		if !o.available(w.ID) {
			return
		}
		m, ok, err := o.Matcher.FindMatch(ctx, w.Channel, w.Mode, w.Topics, o.Registry)
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("conn", string(w.ID)).Msg("find match")
			return
		}
		if !ok {
			return
		}
		if o.pair(ctx, m) && (m.A.ID == w.ID || m.B.ID == w.ID) {
			return
		}
	}
	log.Warn().Str("module", "orch").Str("conn", string(w.ID)).Msg("gave up pairing after repeated stale peers")
}

// available reports whether id is bound and still searching.
func (o *Orchestrator) available(id domain.ConnID) bool {
	state, ok := o.Registry.State(id)
	return ok && state == domain.StateWaiting
}

// pair establishes the session for m and notifies both sides. If either side
// died or stopped searching after being popped, the other one is put back
// with its original priority and false is returned.
func (o *Orchestrator) pair(ctx context.Context, m match.Match) bool {
	o.pairMu.Lock()
	defer o.pairMu.Unlock()

	aOK, bOK := o.available(m.A.ID), o.available(m.B.ID)
	if !aOK || !bOK || !o.Sessions.Establish(m.A.ID, m.B.ID, m.A.Mode) {
		for _, w := range []domain.WaitingUser{m.A, m.B} {
			if !o.available(w.ID) {
				continue
			}
			if _, busy := o.Sessions.PartnerOf(w.ID); busy {
				continue
			}
			if err := o.Matcher.Enqueue(ctx, w); err != nil {
				log.Error().Err(err).Str("module", "orch").Str("conn", string(w.ID)).Msg("requeue survivor")
			}
		}
		return false
	}

	o.setState(m.A.ID, domain.StatePaired)
	o.setState(m.B.ID, domain.StatePaired)
	o.send(m.A.ID, MatchedEvent{Type: TypeMatched, PartnerID: m.B.ID, Initiator: true, Mode: m.A.Mode})
	o.send(m.B.ID, MatchedEvent{Type: TypeMatched, PartnerID: m.A.ID, Initiator: false, Mode: m.A.Mode})

	if o.Tracker != nil {
		o.Tracker.TrackConnection(core.ConnectionEvent{
			Mode:      m.A.Mode,
			Peer1:     m.A.ID,
			Peer2:     m.B.ID,
			CreatedAt: o.now(),
		})
	}
	return true
}

// QueueSize reports the cardinality of one scope for diagnostics.
func (o *Orchestrator) QueueSize(ctx context.Context, channel, mode, topic string) (domain.Scope, int64, error) {
	ch, m, topics := o.Catalog.Normalize(channel, mode, []string{topic})
	scope := domain.Scope{Channel: ch, Mode: m, Topic: topics[0]}
	n, err := o.Matcher.Queue.Cardinality(ctx, scope)
	return scope, n, err
}
