package orch

import (
	"encoding/json"
	"errors"
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/domain"
)

var ErrBadGameID = errors.New("invalid game id")

func parseGameID(raw string) (domain.GameID, error) {
	if raw == "" || len(raw) > domain.MaxGameIDLen {
		return "", ErrBadGameID
	}
	return domain.GameID(raw), nil
}

func randomStarter(players []domain.ConnID) domain.ConnID {
	return players[rand.IntN(len(players))]
}

// RequestGame invites the partner to play gameId.
func (o *Orchestrator) RequestGame(requester, target domain.ConnID, rawGame string) error {
	game, err := parseGameID(rawGame)
	if err != nil {
		return err
	}
	if !o.Sessions.IsPair(requester, target) {
		return domain.ErrNotPartner
	}
	seq := o.Games.Propose(requester, target, game)
	o.send(target, GameProposalEvent{Type: TypeGameProposal, From: requester, GameID: game})
	log.Info().Str("module", "orch").Str("conn", string(requester)).Str("partner", string(target)).Str("game", string(game)).Msg("game requested")

	o.afterTimeout(func() {
		p, ok := o.Games.Expire(requester, seq)
		if !ok {
			return
		}
		log.Info().Str("module", "orch").Str("conn", string(requester)).Str("game", string(p.GameID)).Msg("game proposal timed out")
		o.send(requester, GameResponseEvent{
			Type:     TypeGameResponse,
			From:     p.Target,
			Accepted: false,
			GameID:   p.GameID,
			Reason:   domain.ReasonTimeout,
		})
	})
	return nil
}

// RespondGame answers requester's invite. Accepting starts the game on both
// sides with a randomly chosen starter.
func (o *Orchestrator) RespondGame(responder, requester domain.ConnID, rawGame string, accepted bool) error {
	game, err := parseGameID(rawGame)
	if err != nil {
		return err
	}
	if err := o.resolveGame(responder, requester, game, accepted); err != nil {
		return err
	}
	o.send(requester, GameResponseEvent{Type: TypeGameResponse, From: responder, Accepted: accepted, GameID: game})
	if !accepted {
		return nil
	}

	players := []domain.ConnID{requester, responder}
	pick := o.Starter
	if pick == nil {
		pick = randomStarter
	}
	start := GameStartEvent{Type: TypeGameStart, GameID: game, Players: players, StarterPlayer: pick(players)}
	o.send(requester, start)
	o.send(responder, start)
	log.Info().Str("module", "orch").Str("game", string(game)).Str("starter", string(start.StarterPlayer)).Msg("game start sent")
	return nil
}

// resolveGame settles the proposal while the session is held still, so an
// accepted game never starts on a session teardown already dissolved.
func (o *Orchestrator) resolveGame(responder, requester domain.ConnID, game domain.GameID, accepted bool) error {
	o.pairMu.Lock()
	defer o.pairMu.Unlock()
	if !o.Sessions.IsPair(responder, requester) {
		return domain.ErrNotPartner
	}
	if accepted {
		return o.Games.Accept(responder, requester, game)
	}
	return o.Games.Decline(responder, requester, game)
}

// GameAction relays an opaque move to the active game partner.
func (o *Orchestrator) GameAction(sender, target domain.ConnID, rawGame string, payload json.RawMessage) error {
	h, ok := o.Games.Active(sender)
	if !ok || h.Partner != target || string(h.GameID) != rawGame {
		return domain.ErrNoGame
	}
	o.send(target, GameActionEvent{Type: TypeGameAction, From: sender, GameID: h.GameID, Payload: payload})
	return nil
}

// EndGame closes the active game on both sides and tells the partner why.
func (o *Orchestrator) EndGame(sender, target domain.ConnID, rawGame, reason string) error {
	h, ok := o.Games.Active(sender)
	if !ok || h.Partner != target {
		return domain.ErrNoGame
	}
	if rawGame != "" && string(h.GameID) != rawGame {
		return domain.ErrNoGame
	}
	if _, ok := o.Games.End(sender); !ok {
		return domain.ErrNoGame
	}
	o.send(target, GameEndEvent{Type: TypeGameEnd, From: sender, GameID: h.GameID, Reason: reason})
	log.Info().Str("module", "orch").Str("conn", string(sender)).Str("game", string(h.GameID)).Str("reason", reason).Msg("game ended")
	return nil
}
