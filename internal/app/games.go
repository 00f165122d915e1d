package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/domain"
)

// Games holds pending invites and active-game handles, both keyed by
// connection. An active handle always exists on both sides or neither.
type Games struct {
	mu        sync.Mutex
	proposals map[domain.ConnID]domain.GameProposal // keyed by requester
	active    map[domain.ConnID]domain.GameHandle
	seq       uint64
}

func NewGames() *Games {
	return &Games{
		proposals: make(map[domain.ConnID]domain.GameProposal),
		active:    make(map[domain.ConnID]domain.GameHandle),
	}
}

// Propose records requester's invite, replacing any older one, and returns
// its sequence for Expire.
func (g *Games) Propose(requester, target domain.ConnID, game domain.GameID) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.proposals[requester] = domain.GameProposal{Seq: g.seq, Requester: requester, Target: target, GameID: game}
	return g.seq
}

// Accept turns requester's pending proposal to responder into an active game.
func (g *Games) Accept(responder, requester domain.ConnID, game domain.GameID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.proposals[requester]
	if !ok || p.Target != responder || p.GameID != game {
		return domain.ErrNoProposal
	}
	delete(g.proposals, requester)
	g.endLocked(requester)
	g.endLocked(responder)
	g.active[requester] = domain.GameHandle{GameID: game, Partner: responder}
	g.active[responder] = domain.GameHandle{GameID: game, Partner: requester}
	log.Info().Str("module", "app.games").Str("game", string(game)).Str("a", string(requester)).Str("b", string(responder)).Msg("game started")
	return nil
}

// Decline drops requester's proposal to responder.
func (g *Games) Decline(responder, requester domain.ConnID, game domain.GameID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.proposals[requester]
	if !ok || p.Target != responder || p.GameID != game {
		return domain.ErrNoProposal
	}
	delete(g.proposals, requester)
	return nil
}

// Expire drops proposal seq if it is still pending and reports it.
func (g *Games) Expire(requester domain.ConnID, seq uint64) (domain.GameProposal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.proposals[requester]
	if !ok || p.Seq != seq {
		return domain.GameProposal{}, false
	}
	delete(g.proposals, requester)
	return p, true
}

func (g *Games) Active(id domain.ConnID) (domain.GameHandle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.active[id]
	return h, ok
}

// End removes id's active game on both sides and returns id's handle.
// Pending proposals from or to id are dropped as well.
func (g *Games) End(id domain.ConnID) (domain.GameHandle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for req, p := range g.proposals {
		if req == id || p.Target == id {
			delete(g.proposals, req)
		}
	}
	return g.endLocked(id)
}

func (g *Games) endLocked(id domain.ConnID) (domain.GameHandle, bool) {
	h, ok := g.active[id]
	if !ok {
		return domain.GameHandle{}, false
	}
	delete(g.active, id)
	if back, ok := g.active[h.Partner]; ok && back.Partner == id {
		delete(g.active, h.Partner)
	}
	return h, true
}
