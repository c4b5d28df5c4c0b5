// Package audit records resolved queries to an optional Postgres sink,
// fire-and-forget, grounded on the teacher's
// internal/core/services/dns_service.go audit() method and
// internal/adapters/repository/postgres.go's database/sql usage.
package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// QueryLogEntry is one resolved-query record (SPEC_FULL.md §3 addition).
// Outcome records how the answer was produced: cache, multiply, recursive,
// or servfail.
type QueryLogEntry struct {
	ID         string
	Name       string
	Type       string
	ClientAddr string
	RCode      uint8
	Outcome    string
	Hops       int
	At         time.Time
}

// Sink writes QueryLogEntry rows to Postgres. A nil *Sink (or one whose
// underlying connection failed) is valid to call Log on: failures are
// logged and swallowed, since the audit sink's absence must never affect
// resolution (SPEC_FULL.md §3).
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to Postgres at dsn using the pgx stdlib driver. Callers
// should Ping before assuming the sink is live; Log degrades silently
// either way.
func Open(dsn string, logger *slog.Logger) (*Sink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Sink{db: db, logger: logger}, nil
}

// Ping verifies connectivity to the audit database.
func (s *Sink) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return sql.ErrConnDone
	}
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Log fire-and-forgets one resolved query to the audit table. It never
// blocks the caller on a slow or unreachable database beyond the given
// context's deadline, and never returns an error: a write failure is
// logged and dropped, matching the teacher's "Fire and forget audit for
// now" comment on dns_service.go's audit().
func (s *Sink) Log(ctx context.Context, entry QueryLogEntry) {
	if s == nil || s.db == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const stmt = `INSERT INTO query_log (id, name, type, client_addr, rcode, outcome, hops, at)
	              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.db.ExecContext(ctx, stmt, entry.ID, entry.Name, entry.Type, entry.ClientAddr, entry.RCode, entry.Outcome, entry.Hops, entry.At); err != nil {
		if s.logger != nil {
			s.logger.Warn("audit log write failed", "error", err, "name", entry.Name)
		}
	}
}
