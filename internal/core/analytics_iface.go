package core

import (
	"context"
	"time"

	"github.com/dkeye/Pairup/internal/domain"
)

// ConnectionEvent is emitted when two users are paired or upgrade their session.
type ConnectionEvent struct {
	Mode      domain.Mode
	Peer1     domain.ConnID
	Peer2     domain.ConnID
	CreatedAt time.Time
}

type VisitEvent struct {
	Page      string
	UserAgent string
	Referrer  string
	Visitor   string
	CreatedAt time.Time
}

type AnalyticsSummary struct {
	TotalVisits       int64                 `json:"totalVisits"`
	TotalConnections  int64                 `json:"totalConnections"`
	ConnectionsByMode map[domain.Mode]int64 `json:"connectionsByMode"`
}

// Tracker is the fire-and-forget analytics collaborator.
// Implementations must not block the caller and must swallow their own failures.
type Tracker interface {
	TrackConnection(ev ConnectionEvent)
	TrackVisit(ev VisitEvent)
}

// AnalyticsReader serves the stats endpoint.
type AnalyticsReader interface {
	Summary(ctx context.Context) (AnalyticsSummary, error)
}
