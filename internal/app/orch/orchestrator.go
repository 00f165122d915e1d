package orch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/app/match"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

// Orchestrator drives the per-connection lifecycle (admit, match, next,
// leave, disconnect) and relays session traffic between paired connections.
type Orchestrator struct {
	Registry *app.Registry
	Sessions *app.Sessions
	Games    *app.Games
	Matcher  *match.Matchmaker
	Catalog  *domain.Catalog
	Tracker  core.Tracker
	Policy   app.Policy

	// NegotiationTimeout bounds pending upgrade and game proposals; 0 disables it.
	NegotiationTimeout time.Duration
	Now                func() time.Time
	// Starter picks the first player of a new game among two.
	Starter func(players []domain.ConnID) domain.ConnID
	// Classify is optional and only feeds relay logs.
	Classify SignalClassifier

	// pairMu orders session establishment against disconnect so that a
	// partner never receives matched after partner_disconnected.
	pairMu sync.Mutex
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Connect binds a fresh transport and tells the client its connection id.
func (o *Orchestrator) Connect(id domain.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(id, sig, cancel)
	o.send(id, WelcomeEvent{Type: TypeWelcome, ID: id})
}

// Disconnect runs the full cleanup for id: it stops being live, leaves every
// queue, and its partner (and game partner) are notified exactly once.
func (o *Orchestrator) Disconnect(ctx context.Context, id domain.ConnID) {
	o.pairMu.Lock()
	bound := o.Registry.Unbind(id)
	o.pairMu.Unlock()
	if !bound {
		return
	}
	o.teardown(ctx, id, domain.EndReasonDisconnect)
	log.Info().Str("module", "orch").Str("conn", string(id)).Msg("disconnected")
}

// teardown ends id's game and session and cancels any waiting entry. The game
// and the session end in one critical section with RespondGame and pair, so
// no game handle outlives its session.
func (o *Orchestrator) teardown(ctx context.Context, id domain.ConnID, reason string) {
	o.pairMu.Lock()
	h, inGame := o.Games.End(id)
	partner, paired := o.Sessions.Dissolve(id)
	if inGame {
		o.send(h.Partner, GameEndEvent{Type: TypeGameEnd, From: id, GameID: h.GameID, Reason: reason})
	}
	if paired {
		o.send(partner, PartnerDisconnectedEvent{Type: TypePartnerDisconnected})
		o.setState(partner, domain.StateIdle)
	}
	// idle under pairMu: a match that already popped id will not pair it
	if state, ok := o.Registry.State(id); ok && state != domain.StateIdle {
		o.setState(id, domain.StateIdle)
	}
	o.pairMu.Unlock()

	w, waiting, err := o.Matcher.Waiting.Load(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("load waiting metadata")
	}
	if waiting {
		o.Matcher.Evict(ctx, w)
	}
}

// Touch refreshes the stored metadata of a waiting connection so that it does
// not expire while the connection is still in line.
func (o *Orchestrator) Touch(ctx context.Context, id domain.ConnID) {
	w, ok := o.Registry.RecoverWaiting(id)
	if !ok {
		return
	}
	if err := o.Matcher.Waiting.Save(ctx, w); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("refresh waiting metadata")
	}
}

func (o *Orchestrator) setState(id domain.ConnID, to domain.ConnState) {
	if err := o.Registry.SetState(id, to); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("state")
	}
}

// send encodes v and hands it to id's transport. Unknown or closed targets
// drop the event; slow targets are handled by Policy.
func (o *Orchestrator) send(id domain.ConnID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return
	}
	sig, ok := o.Registry.Signal(id)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(id)).Msg("drop event for unbound connection")
		return
	}
	if err := sig.TrySend(core.Frame(b)); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("send failed")
		if o.Policy == nil {
			return
		}
		switch o.Policy.OnBackPressure(id) {
		case app.KickMember:
			o.Registry.Cancel(id)
		case app.DropFrame, app.NoAction:
		}
	}
}

// afterTimeout runs f once NegotiationTimeout elapses, if a timeout is set.
func (o *Orchestrator) afterTimeout(f func()) {
	if o.NegotiationTimeout <= 0 {
		return
	}
	time.AfterFunc(o.NegotiationTimeout, f)
}
