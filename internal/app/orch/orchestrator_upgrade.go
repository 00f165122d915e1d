package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

var ErrNotRicher = errors.New("target mode is not richer than the current mode")

// RequestUpgrade opens a mode negotiation from requester to its partner.
// Only a strictly richer mode may be requested.
func (o *Orchestrator) RequestUpgrade(requester, target domain.ConnID, rawMode string) error {
	mode, err := domain.ParseMode(rawMode)
	if err != nil {
		return err
	}
	current, ok := o.Sessions.Mode(requester)
	if !ok {
		return domain.ErrNotPaired
	}
	if !mode.Richer(current) {
		return ErrNotRicher
	}
	seq, err := o.Sessions.ProposeUpgrade(requester, target, mode)
	if err != nil {
		return err
	}
	o.send(target, UpgradeRequestEvent{Type: TypeUpgradeRequest, From: requester, TargetMode: mode})
	log.Info().Str("module", "orch").Str("conn", string(requester)).Str("partner", string(target)).Str("mode", string(mode)).Msg("upgrade requested")

	o.afterTimeout(func() {
		u, partner, ok := o.Sessions.ExpireUpgrade(requester, seq)
		if !ok {
			return
		}
		log.Info().Str("module", "orch").Str("conn", string(requester)).Str("mode", string(u.TargetMode)).Msg("upgrade timed out")
		o.send(requester, UpgradeResponseEvent{
			Type:       TypeUpgradeResponse,
			From:       partner,
			Accepted:   false,
			TargetMode: u.TargetMode,
			Reason:     domain.ReasonTimeout,
		})
	})
	return nil
}

// RespondUpgrade resolves the partner's pending negotiation. On accept the
// session mode changes and a connection record with the new mode is tracked.
func (o *Orchestrator) RespondUpgrade(responder, requester domain.ConnID, rawMode string, accepted bool) error {
	mode, err := domain.ParseMode(rawMode)
	if err != nil {
		return err
	}
	u, err := o.Sessions.ResolveUpgrade(responder, requester, mode, accepted)
	if err != nil {
		return err
	}
	o.send(requester, UpgradeResponseEvent{
		Type:       TypeUpgradeResponse,
		From:       responder,
		Accepted:   u.Status == domain.UpgradeAccepted,
		TargetMode: u.TargetMode,
	})
	log.Info().
		Str("module", "orch").
		Str("conn", string(responder)).
		Str("partner", string(requester)).
		Str("mode", string(u.TargetMode)).
		Stringer("status", u.Status).
		Msg("upgrade resolved")

	if u.Status != domain.UpgradeAccepted {
		return nil
	}
	// a later Next queues both sides under the upgraded mode
	for _, id := range []domain.ConnID{requester, responder} {
		if prefs, ok := o.Registry.Preferences(id); ok {
			prefs.Mode = u.TargetMode
			o.Registry.SetPreferences(id, prefs)
		}
	}
	if o.Tracker != nil {
		o.Tracker.TrackConnection(core.ConnectionEvent{
			Mode:      u.TargetMode,
			Peer1:     requester,
			Peer2:     responder,
			CreatedAt: o.now(),
		})
	}
	return nil
}
