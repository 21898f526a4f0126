package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/g960059/cliprelay/internal/model"
)

var (
	ErrDuplicate = errors.New("duplicate")
	ErrInvalidOp = errors.New("invalid op")
)

const defaultListLimit = 100

// Fixed-width so lexical order in sqlite matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) RecordEvent(ctx context.Context, ev model.MailboxEvent) error {
	if ev.Op != model.OpWrite && ev.Op != model.OpRead {
		return fmt.Errorf("record event: %w: %q", ErrInvalidOp, ev.Op)
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO mailbox_events(event_id, instance_id, op, version, size_bytes, at)
VALUES (?, ?, ?, ?, ?, ?)
`, ev.EventID, ev.InstanceID, string(ev.Op), int64(ev.Version), ev.SizeBytes, ts(ev.At))
	if err != nil {
		if isUniqueErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents returns the newest events first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]model.MailboxEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, instance_id, op, version, size_bytes, at
FROM mailbox_events
ORDER BY at DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.MailboxEvent{}
	for rows.Next() {
		var (
			ev      model.MailboxEvent
			op      string
			version int64
			at      string
		)
		if err := rows.Scan(&ev.EventID, &ev.InstanceID, &op, &version, &ev.SizeBytes, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		parsed, err := parseTS(at)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		ev.Op = model.MailboxOp(op)
		ev.Version = uint64(version)
		ev.At = parsed
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mailbox_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// PurgeBefore deletes events older than cutoff and reports how many went.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mailbox_events WHERE at < ?`, ts(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge events rows affected: %w", err)
	}
	return n, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func isUniqueErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
