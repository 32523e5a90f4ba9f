package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS security_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    form TEXT NOT NULL DEFAULT '',
    field TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL DEFAULT '',
    original_length INTEGER NOT NULL DEFAULT 0,
    sanitized_length INTEGER NOT NULL DEFAULT 0,
    detail TEXT NOT NULL DEFAULT '',
    occurred_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_security_events_type ON security_events(type);
CREATE INDEX IF NOT EXISTS idx_security_events_occurred ON security_events(occurred_at);
`

var errStoreClosed = errors.New("events: store is closed")

// SQLiteStore persists security events for later inspection.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// StoreOption customises a SQLiteStore.
type StoreOption func(*SQLiteStore)

// WithStoreLogger reports write failures, which LogSecurityEvent otherwise
// swallows.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreClock overrides time.Now for stamping events.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// OpenSQLite opens or creates an events database at path.
func OpenSQLite(path string, opts ...StoreOption) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("events: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("events: open database: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("events: connect to database: %w", err)
	}
	if _, err := db.Exec(eventsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("events: initialise schema: %w", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err == nil && count == 0 {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
			db.Close()
			return nil, fmt.Errorf("events: record schema version: %w", err)
		}
	}

	store := &SQLiteStore{db: db, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LogSecurityEvent records event, logging instead of returning failures.
func (s *SQLiteStore) LogSecurityEvent(ctx context.Context, event Event) {
	if err := s.Record(ctx, event); err != nil {
		s.logger.Error("record security event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Record stores event, filling in a missing ID and time first.
func (s *SQLiteStore) Record(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return errStoreClosed
	}
	event = Stamp(event, s.now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_events
		(id, type, form, field, action, original_length, sanitized_length, detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Type), event.Form, event.Field, event.Action,
		event.OriginalLength, event.SanitizedLength, event.Detail, event.Time.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("events: record event: %w", err)
	}
	return nil
}

// Query filters Recent results. Zero values match everything; Limit <= 0
// means 100.
type Query struct {
	Type  Type
	Form  string
	Since time.Time
	Limit int
}

// Recent returns events newest first.
func (s *SQLiteStore) Recent(ctx context.Context, q Query) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, errStoreClosed
	}

	query := `SELECT id, type, form, field, action, original_length, sanitized_length, detail, occurred_at
		FROM security_events WHERE 1=1`
	var args []any

	if q.Type != "" {
		query += " AND type = ?"
		args = append(args, string(q.Type))
	}
	if q.Form != "" {
		query += " AND form = ?"
		args = append(args, q.Form)
	}
	if !q.Since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, q.Since.UnixNano())
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("events: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event    Event
			typ      string
			occurred int64
		)
		if err := rows.Scan(&event.ID, &typ, &event.Form, &event.Field, &event.Action,
			&event.OriginalLength, &event.SanitizedLength, &event.Detail, &occurred); err != nil {
			return nil, fmt.Errorf("events: scan event: %w", err)
		}
		event.Type = Type(typ)
		event.Time = time.Unix(0, occurred).UTC()
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: iterate events: %w", err)
	}
	return out, nil
}

// Counts returns the number of stored events per type.
func (s *SQLiteStore) Counts(ctx context.Context) (map[Type]int, error) {
	if s == nil || s.db == nil {
		return nil, errStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM security_events GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("events: count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[Type]int)
	for rows.Next() {
		var (
			typ   string
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("events: scan count: %w", err)
		}
		counts[Type(typ)] = count
	}
	return counts, rows.Err()
}
