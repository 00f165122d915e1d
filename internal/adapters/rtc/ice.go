// Package rtc holds the WebRTC pieces the server needs without touching media:
// ICE server configuration for clients and labelling of relayed signals.
package rtc

import (
	"encoding/json"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Pairup/internal/config"
)

const defaultSTUN = "stun:stun.l.google.com:19302"

// ICEServers converts configured servers into the pion representation, which
// marshals to the RTCIceServer JSON shape browsers expect. Entries without
// URLs are skipped; an empty result falls back to a public STUN server.
func ICEServers(cfg []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(cfg))
	for _, s := range cfg {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			continue
		}
		srv := webrtc.ICEServer{URLs: urls, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	if len(out) == 0 {
		out = append(out, webrtc.ICEServer{URLs: []string{defaultSTUN}})
	}
	return out
}

// Configuration wraps the ICE servers the way a PeerConnection expects them.
func Configuration(cfg []config.ICEServer) webrtc.Configuration {
	return webrtc.Configuration{ICEServers: ICEServers(cfg)}
}

// Classify labels a relayed signaling blob as offer, answer, pranswer,
// rollback, candidate, or whatever other type tag it carries. It never fails;
// blobs it cannot read are "unknown".
func Classify(raw json.RawMessage) string {
	var probe struct {
		Type      string          `json:"type"`
		SDP       string          `json:"sdp"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "unknown"
	}
	if t := webrtc.NewSDPType(probe.Type); t != webrtc.SDPTypeUnknown {
		return t.String()
	}
	if probe.Type == "candidate" || len(probe.Candidate) > 0 {
		return "candidate"
	}
	if probe.Type != "" {
		return probe.Type
	}
	return "unknown"
}
