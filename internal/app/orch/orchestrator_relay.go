package orch

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/domain"
)

// SignalClassifier names a relayed signaling blob for logs, e.g. "offer".
type SignalClassifier func(json.RawMessage) string

// RelaySignal forwards an opaque signaling blob from sender to its partner.
func (o *Orchestrator) RelaySignal(sender, target domain.ConnID, signal json.RawMessage) {
	if !o.Sessions.IsPair(sender, target) {
		log.Debug().Str("module", "orch").Str("conn", string(sender)).Str("target", string(target)).Msg("drop signal to non-partner")
		return
	}
	ev := log.Debug().Str("module", "orch").Str("conn", string(sender)).Str("partner", string(target))
	if o.Classify != nil {
		ev = ev.Str("kind", o.Classify(signal))
	}
	ev.Msg("relay signal")
	o.send(target, SignalEvent{Type: TypeSignal, Sender: sender, Signal: signal})
}

// RelayChat forwards a chat message from sender to its partner.
func (o *Orchestrator) RelayChat(sender, target domain.ConnID, message json.RawMessage) {
	if !o.Sessions.IsPair(sender, target) {
		log.Debug().Str("module", "orch").Str("conn", string(sender)).Str("target", string(target)).Msg("drop chat to non-partner")
		return
	}
	o.send(target, ChatMessageEvent{Type: TypeChatMessage, Sender: sender, Message: message})
}
