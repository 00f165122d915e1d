package domain

import "errors"

var (
	ErrNotPaired     = errors.New("not paired")
	ErrNotPartner    = errors.New("target is not the current partner")
	ErrNoGame        = errors.New("no active game")
	ErrNoProposal    = errors.New("no matching proposal")
	ErrNoNegotiation = errors.New("no pending negotiation")
)

// GameID names a game type. The server never interprets game payloads.
type GameID string

const MaxGameIDLen = 64

// Game end reasons produced by the server.
const (
	EndReasonDisconnect = "disconnect"
	EndReasonNext       = "next"
	EndReasonLeave      = "leave"
	ReasonTimeout       = "timeout"
)

// GameHandle exists while a game is active between two connections.
type GameHandle struct {
	GameID  GameID
	Partner ConnID
}

// GameProposal is a pending invite from Requester.
type GameProposal struct {
	Seq       uint64
	Requester ConnID
	Target    ConnID
	GameID    GameID
}
