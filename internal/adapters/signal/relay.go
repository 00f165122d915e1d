package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/domain"
)

func (ctl *SignalWSController) handleRelaySignal(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type signalPayload struct {
		Target domain.ConnID   `json:"target"`
		Signal json.RawMessage `json:"signal"`
	}
	var p signalPayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	ctl.Orch.RelaySignal(id, p.Target, p.Signal)
}

func (ctl *SignalWSController) handleChat(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type chatPayload struct {
		Target  domain.ConnID   `json:"target"`
		Message json.RawMessage `json:"message"`
	}
	var p chatPayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	ctl.Orch.RelayChat(id, p.Target, p.Message)
}

func (ctl *SignalWSController) handleUpgradeRequest(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type upgradeRequestPayload struct {
		Target     domain.ConnID `json:"target"`
		TargetMode string        `json:"targetMode"`
	}
	var p upgradeRequestPayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	if err := ctl.Orch.RequestUpgrade(id, p.Target, p.TargetMode); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("upgrade request dropped")
	}
}

func (ctl *SignalWSController) handleUpgradeResponse(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type upgradeResponsePayload struct {
		Target     domain.ConnID `json:"target"`
		Accepted   bool          `json:"accepted"`
		TargetMode string        `json:"targetMode"`
	}
	var p upgradeResponsePayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	if err := ctl.Orch.RespondUpgrade(id, p.Target, p.TargetMode, p.Accepted); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("upgrade response dropped")
	}
}
