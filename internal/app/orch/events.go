package orch

import (
	"encoding/json"

	"github.com/dkeye/Pairup/internal/domain"
)

// Outbound event types.
const (
	TypeWelcome             = "welcome"
	TypeWaiting             = "waiting"
	TypeMatched             = "matched"
	TypePartnerDisconnected = "partner_disconnected"
	TypeSignal              = "signal"
	TypeChatMessage         = "chat_message"
	TypeUpgradeRequest      = "upgrade_request"
	TypeUpgradeResponse     = "upgrade_response"
	TypeGameProposal        = "game:proposal"
	TypeGameResponse        = "game:response"
	TypeGameStart           = "game:start"
	TypeGameAction          = "game:action"
	TypeGameEnd             = "game:end"
)

type WelcomeEvent struct {
	Type string        `json:"type"`
	ID   domain.ConnID `json:"id"`
}

type WaitingEvent struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channel"`
	Mode    domain.Mode      `json:"mode"`
	Topics  []domain.TopicID `json:"topics"`
}

type MatchedEvent struct {
	Type      string        `json:"type"`
	PartnerID domain.ConnID `json:"partnerId"`
	Initiator bool          `json:"initiator"`
	Mode      domain.Mode   `json:"mode"`
}

type PartnerDisconnectedEvent struct {
	Type string `json:"type"`
}

type SignalEvent struct {
	Type   string          `json:"type"`
	Sender domain.ConnID   `json:"sender"`
	Signal json.RawMessage `json:"signal"`
}

type ChatMessageEvent struct {
	Type    string          `json:"type"`
	Sender  domain.ConnID   `json:"sender"`
	Message json.RawMessage `json:"message"`
}

type UpgradeRequestEvent struct {
	Type       string        `json:"type"`
	From       domain.ConnID `json:"from"`
	TargetMode domain.Mode   `json:"targetMode"`
}

type UpgradeResponseEvent struct {
	Type       string        `json:"type"`
	From       domain.ConnID `json:"from"`
	Accepted   bool          `json:"accepted"`
	TargetMode domain.Mode   `json:"targetMode"`
	Reason     string        `json:"reason,omitempty"`
}

type GameProposalEvent struct {
	Type   string        `json:"type"`
	From   domain.ConnID `json:"from"`
	GameID domain.GameID `json:"gameId"`
}

type GameResponseEvent struct {
	Type     string        `json:"type"`
	From     domain.ConnID `json:"from"`
	Accepted bool          `json:"accepted"`
	GameID   domain.GameID `json:"gameId"`
	Reason   string        `json:"reason,omitempty"`
}

type GameStartEvent struct {
	Type          string          `json:"type"`
	GameID        domain.GameID   `json:"gameId"`
	Players       []domain.ConnID `json:"players"`
	StarterPlayer domain.ConnID   `json:"starterPlayer"`
}

type GameActionEvent struct {
	Type    string          `json:"type"`
	From    domain.ConnID   `json:"from"`
	GameID  domain.GameID   `json:"gameId"`
	Payload json.RawMessage `json:"payload"`
}

type GameEndEvent struct {
	Type   string        `json:"type"`
	From   domain.ConnID `json:"from"`
	GameID domain.GameID `json:"gameId"`
	Reason string        `json:"reason"`
}
