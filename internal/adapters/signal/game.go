package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/domain"
)

func (ctl *SignalWSController) handleGameRequest(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type gameRequestPayload struct {
		Target domain.ConnID `json:"target"`
		GameID string        `json:"gameId"`
	}
	var p gameRequestPayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	if err := ctl.Orch.RequestGame(id, p.Target, p.GameID); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("game request dropped")
	}
}

func (ctl *SignalWSController) handleGameResponse(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type gameResponsePayload struct {
		Target   domain.ConnID `json:"target"`
		Accepted bool          `json:"accepted"`
		GameID   string        `json:"gameId"`
	}
	var p gameResponsePayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	if err := ctl.Orch.RespondGame(id, p.Target, p.GameID, p.Accepted); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("game response dropped")
	}
}

func (ctl *SignalWSController) handleGameAction(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type gameActionPayload struct {
		Target  domain.ConnID   `json:"target"`
		GameID  string          `json:"gameId"`
		Payload json.RawMessage `json:"payload"`
	}
	var p gameActionPayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	if err := ctl.Orch.GameAction(id, p.Target, p.GameID, p.Payload); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("game action dropped")
	}
}

func (ctl *SignalWSController) handleGameEnd(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type gameEndPayload struct {
		Target domain.ConnID `json:"target"`
		GameID string        `json:"gameId"`
		Reason string        `json:"reason"`
	}
	var p gameEndPayload
	if !ctl.decode(id, conn, data, &p) {
		return
	}
	if err := ctl.Orch.EndGame(id, p.Target, p.GameID, p.Reason); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("game end dropped")
	}
}
