package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

// Preferences is the last admission request of a connection, reused by Next.
type Preferences struct {
	Channel domain.ChannelID
	Mode    domain.Mode
	Topics  []domain.TopicID
}

type connEntry struct {
	Signal core.SignalConnection
	Cancel context.CancelFunc
	State  domain.ConnState
	Prefs  *Preferences
	// Waiting is the record of the last admission, kept while state is waiting.
	Waiting *domain.WaitingUser
}

// Registry tracks connections bound to this process. A connection is live
// exactly while it is bound; it doubles as the matchmaker's liveness oracle.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnID]*connEntry)}
}

func (r *Registry) Bind(id domain.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{Signal: sig, Cancel: cancel, State: domain.StateIdle}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound connection")
}

// Unbind forgets id and reports whether it was bound.
func (r *Registry) Unbind(id domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbound connection")
	return true
}

func (r *Registry) IsLive(id domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

func (r *Registry) Signal(id domain.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Signal, true
	}
	return nil, false
}

func (r *Registry) State(id domain.ConnID) (domain.ConnState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.State, true
	}
	return domain.StateIdle, false
}

// SetState applies a validated lifecycle transition. Unbound ids are ignored.
func (r *Registry) SetState(id domain.ConnID, to domain.ConnState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	next, err := e.State.Transition(to)
	if err != nil {
		return err
	}
	e.State = next
	return nil
}

func (r *Registry) SetPreferences(id domain.ConnID, p Preferences) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		p.Topics = append([]domain.TopicID(nil), p.Topics...)
		e.Prefs = &p
	}
}

func (r *Registry) Preferences(id domain.ConnID) (Preferences, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.Prefs == nil {
		return Preferences{}, false
	}
	p := *e.Prefs
	p.Topics = append([]domain.TopicID(nil), p.Topics...)
	return p, true
}

// SetWaiting remembers the queued record of id for RecoverWaiting.
func (r *Registry) SetWaiting(id domain.ConnID, w domain.WaitingUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		w.Topics = append([]domain.TopicID(nil), w.Topics...)
		e.Waiting = &w
	}
}

// RecoverWaiting returns the queued record of id while it is still waiting.
func (r *Registry) RecoverWaiting(id domain.ConnID) (domain.WaitingUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.State != domain.StateWaiting || e.Waiting == nil {
		return domain.WaitingUser{}, false
	}
	w := *e.Waiting
	w.Topics = append([]domain.TopicID(nil), w.Topics...)
	return w, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel stops the transport pumps of id; the adapter then reports the disconnect.
func (r *Registry) Cancel(id domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}
