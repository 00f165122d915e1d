// Package analytics persists connection and visit counters in SQLite.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS connections (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	mode       TEXT    NOT NULL,
	peer1      TEXT    NOT NULL,
	peer2      TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS connections_mode_idx ON connections (mode);
CREATE TABLE IF NOT EXISTS visits (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	page       TEXT    NOT NULL,
	user_agent TEXT    NOT NULL DEFAULT '',
	referrer   TEXT    NOT NULL DEFAULT '',
	visitor    TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`

// Store is the SQLite-backed analytics sink.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the analytics database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) RecordConnection(ctx context.Context, ev core.ConnectionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ev.Mode.Valid() {
		return fmt.Errorf("record connection: %w", domain.ErrUnknownMode)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO connections (mode, peer1, peer2, created_at) VALUES (?, ?, ?, ?)
`,
		string(ev.Mode),
		string(ev.Peer1),
		string(ev.Peer2),
		ev.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record connection: %w", err)
	}
	return nil
}

func (s *Store) RecordVisit(ctx context.Context, ev core.VisitEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev.Page = strings.TrimSpace(ev.Page)
	if ev.Page == "" {
		return fmt.Errorf("page is required")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO visits (page, user_agent, referrer, visitor, created_at) VALUES (?, ?, ?, ?, ?)
`,
		ev.Page,
		ev.UserAgent,
		ev.Referrer,
		ev.Visitor,
		ev.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// Summary returns the totals served by the stats endpoint.
func (s *Store) Summary(ctx context.Context) (core.AnalyticsSummary, error) {
	out := core.AnalyticsSummary{ConnectionsByMode: make(map[domain.Mode]int64)}
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&out.TotalVisits); err != nil {
		return out, fmt.Errorf("count visits: %w", err)
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT mode, COUNT(*) FROM connections GROUP BY mode`)
	if err != nil {
		return out, fmt.Errorf("count connections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			mode string
			n    int64
		)
		if err := rows.Scan(&mode, &n); err != nil {
			return out, fmt.Errorf("scan connections: %w", err)
		}
		out.ConnectionsByMode[domain.Mode(mode)] = n
		out.TotalConnections += n
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("iterate connections: %w", err)
	}
	return out, nil
}
