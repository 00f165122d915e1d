package domain

import (
	"errors"
	"fmt"
)

var ErrBadTransition = errors.New("bad state transition")

// ConnState is the lifecycle state of a bound connection.
// A connection without a binding is disconnected.
type ConnState int

const (
	StateIdle ConnState = iota
	StateWaiting
	StatePaired
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var connTransitions = map[ConnState]map[ConnState]bool{
	StateIdle:    {StateWaiting: true},
	StateWaiting: {StateWaiting: true, StatePaired: true, StateIdle: true},
	StatePaired:  {StateIdle: true, StatePaired: true},
}

// Transition validates from -> to against the lifecycle table.
func (s ConnState) Transition(to ConnState) (ConnState, error) {
	if connTransitions[s][to] {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrBadTransition, s, to)
}

// Role is assigned once at match time.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) Initiator() bool { return r == RoleInitiator }

// UpgradeStatus tracks one in-session mode renegotiation.
type UpgradeStatus int

const (
	UpgradePending UpgradeStatus = iota
	UpgradeAccepted
	UpgradeRejected
)

func (s UpgradeStatus) String() string {
	switch s {
	case UpgradePending:
		return "pending"
	case UpgradeAccepted:
		return "accepted"
	case UpgradeRejected:
		return "rejected"
	}
	return fmt.Sprintf("upgrade(%d)", int(s))
}

// Upgrade is the transient negotiation attached to a session.
type Upgrade struct {
	Seq        uint64
	Requester  ConnID
	TargetMode Mode
	Status     UpgradeStatus
}
