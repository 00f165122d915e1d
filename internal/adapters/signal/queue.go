package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/domain"
)

func (ctl *SignalWSController) allowAdmit(id domain.ConnID, conn *WsSignalConn) bool {
	if ctl.Limiter == nil || ctl.Limiter.Allow(id) {
		return true
	}
	log.Warn().Str("module", "signal").Str("conn", string(id)).Msg("admit rate limited")
	ctl.sendError(conn, errRateLimited)
	return false
}

func (ctl *SignalWSController) handleAdmit(
	ctx context.Context,
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type admitPayload struct {
		Type    string   `json:"type"`
		Channel string   `json:"channel,omitempty"`
		Mode    string   `json:"mode,omitempty"`
		Topics  []string `json:"topics,omitempty"`
	}
	var p admitPayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	if !ctl.allowAdmit(id, conn) {
		return
	}
	ctl.Orch.Admit(ctx, id, orch.AdmitRequest{Channel: p.Channel, Mode: p.Mode, Topics: p.Topics})
}

func (ctl *SignalWSController) handleNext(
	ctx context.Context,
	id domain.ConnID,
	conn *WsSignalConn,
) {
	if !ctl.allowAdmit(id, conn) {
		return
	}
	ctl.Orch.Next(ctx, id)
}

// handleLeave stops searching or ends the session; the websocket stays open.
func (ctl *SignalWSController) handleLeave(
	ctx context.Context,
	id domain.ConnID,
) {
	ctl.Orch.Leave(ctx, id)
}
