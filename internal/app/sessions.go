package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/domain"
)

type pairing struct {
	a, b    domain.ConnID
	mode    domain.Mode
	upgrade *domain.Upgrade
}

func (p *pairing) other(id domain.ConnID) domain.ConnID {
	if id == p.a {
		return p.b
	}
	return p.a
}

// Sessions maps each paired connection to its shared pairing. Both ids point
// at the same *pairing, so the two directions cannot disagree.
type Sessions struct {
	mu    sync.RWMutex
	pairs map[domain.ConnID]*pairing
	seq   uint64
}

func NewSessions() *Sessions {
	return &Sessions{pairs: make(map[domain.ConnID]*pairing)}
}

// Establish pairs a (initiator) with b (responder). It refuses if either id
// already has a session or a == b.
func (s *Sessions) Establish(a, b domain.ConnID, mode domain.Mode) bool {
	if a == b {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pairs[a]; busy {
		return false
	}
	if _, busy := s.pairs[b]; busy {
		return false
	}
	p := &pairing{a: a, b: b, mode: mode}
	s.pairs[a] = p
	s.pairs[b] = p
	log.Info().Str("module", "app.sessions").Str("a", string(a)).Str("b", string(b)).Str("mode", string(mode)).Msg("session established")
	return true
}

func (s *Sessions) PartnerOf(id domain.ConnID) (domain.ConnID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok {
		return "", false
	}
	return p.other(id), true
}

// IsPair reports whether a and b share the current session.
func (s *Sessions) IsPair(a, b domain.ConnID) bool {
	partner, ok := s.PartnerOf(a)
	return ok && partner == b
}

// Dissolve removes both directions of id's session in one critical section
// and returns the former partner. Concurrent callers see the partner once.
func (s *Sessions) Dissolve(id domain.ConnID) (domain.ConnID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[id]
	if !ok {
		return "", false
	}
	partner := p.other(id)
	delete(s.pairs, id)
	delete(s.pairs, partner)
	log.Info().Str("module", "app.sessions").Str("conn", string(id)).Str("partner", string(partner)).Msg("session dissolved")
	return partner, true
}

func (s *Sessions) Role(id domain.ConnID) (domain.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok {
		return 0, false
	}
	if p.a == id {
		return domain.RoleInitiator, true
	}
	return domain.RoleResponder, true
}

func (s *Sessions) Mode(id domain.ConnID) (domain.Mode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok {
		return "", false
	}
	return p.mode, true
}

// SetMode switches the mode of id's session. It reports false if id is not paired.
func (s *Sessions) SetMode(id domain.ConnID, mode domain.Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[id]
	if !ok {
		return false
	}
	p.mode = mode
	return true
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pairs) / 2
}

// ProposeUpgrade opens a pending negotiation on requester's session. A newer
// request replaces an older pending one. The returned sequence identifies
// this negotiation for ExpireUpgrade.
func (s *Sessions) ProposeUpgrade(requester, target domain.ConnID, mode domain.Mode) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[requester]
	if !ok {
		return 0, domain.ErrNotPaired
	}
	if p.other(requester) != target {
		return 0, domain.ErrNotPartner
	}
	s.seq++
	p.upgrade = &domain.Upgrade{Seq: s.seq, Requester: requester, TargetMode: mode, Status: domain.UpgradePending}
	return s.seq, nil
}

// ResolveUpgrade closes the pending negotiation. Only the partner of the
// requester may resolve it, and only for the requested mode. On accept the
// session switches to the target mode.
func (s *Sessions) ResolveUpgrade(responder, requester domain.ConnID, mode domain.Mode, accepted bool) (domain.Upgrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[responder]
	if !ok {
		return domain.Upgrade{}, domain.ErrNotPaired
	}
	if p.other(responder) != requester {
		return domain.Upgrade{}, domain.ErrNotPartner
	}
	u := p.upgrade
	if u == nil || u.Requester != requester || u.TargetMode != mode || u.Status != domain.UpgradePending {
		return domain.Upgrade{}, domain.ErrNoNegotiation
	}
	p.upgrade = nil
	res := *u
	if accepted {
		res.Status = domain.UpgradeAccepted
		p.mode = mode
	} else {
		res.Status = domain.UpgradeRejected
	}
	return res, nil
}

// ExpireUpgrade drops negotiation seq if it is still pending and returns it
// together with the partner so the caller can notify the requester.
func (s *Sessions) ExpireUpgrade(requester domain.ConnID, seq uint64) (domain.Upgrade, domain.ConnID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[requester]
	if !ok || p.upgrade == nil || p.upgrade.Seq != seq {
		return domain.Upgrade{}, "", false
	}
	u := *p.upgrade
	p.upgrade = nil
	return u, p.other(requester), true
}

// PendingUpgrade returns the open negotiation on id's session, if any.
func (s *Sessions) PendingUpgrade(id domain.ConnID) (domain.Upgrade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok || p.upgrade == nil {
		return domain.Upgrade{}, false
	}
	return *p.upgrade, true
}
