package signal

import (
	"context"

	"github.com/dkeye/Pairup/internal/domain"
)

const (
	errBadPayload  = "bad_payload"
	errUnknownType = "unknown_type"
	errRateLimited = "rate_limited"
)

// handlePing answers pong and keeps a waiting connection's metadata fresh.
func (ctl *SignalWSController) handlePing(
	ctx context.Context,
	id domain.ConnID,
	conn *WsSignalConn,
) {
	ctl.Orch.Touch(ctx, id)
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) sendError(conn *WsSignalConn, code string) {
	ctl.sendJSON(conn, map[string]any{
		"type":  "error",
		"error": code,
	})
}
