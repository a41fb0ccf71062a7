// Package store implements the durable mailbox: an inbox of unprocessed
// inbound messages and an outbox of drafted replies, each in its own SQLite
// database file so classification churn never blocks outbox drains.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mailbot/internal/domain"

	_ "modernc.org/sqlite"
)

const (
	lockRetries = 5
	lockDelay   = 500 * time.Millisecond
)

// ErrBusy is returned when a write could not acquire the database lock after
// bounded retries. Callers skip the operation and continue; it is never fatal.
var ErrBusy = errors.New("store: database busy")

// InboxChange is one classification outcome to apply to an inbox row.
type InboxChange struct {
	MsgID  string
	Delete bool
	Type   domain.MessageType // ignored when Delete is set
}

// Store owns the two mailbox tables. The ingestion path and the processing
// path may touch it concurrently; contention is absorbed by WAL mode plus
// bounded lock-retry, not by in-process mutexes.
type Store struct {
	inbox  *sql.DB
	outbox *sql.DB
	logger *slog.Logger
}

func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create data directory %s: %w", dataDir, err)
	}

	inbox, err := openDB(filepath.Join(dataDir, "inbox.db"), inboxSchema)
	if err != nil {
		return nil, fmt.Errorf("open inbox: %w", err)
	}
	outbox, err := openDB(filepath.Join(dataDir, "outbox.db"), outboxSchema)
	if err != nil {
		inbox.Close()
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	return &Store{inbox: inbox, outbox: outbox, logger: logger}, nil
}

const inboxSchema = `
CREATE TABLE IF NOT EXISTS messages (
	content      TEXT,
	time_sent    DATETIME,
	time_seen    DATETIME,
	type         TEXT NOT NULL,
	sender       TEXT,
	subject      TEXT,
	msg_id       TEXT PRIMARY KEY,
	thread_id    TEXT,
	external_ref TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_type ON messages(type);
`

const outboxSchema = `
CREATE TABLE IF NOT EXISTS messages (
	content      TEXT,
	time_sent    DATETIME,
	sender       TEXT,
	subject      TEXT,
	msg_id       TEXT PRIMARY KEY,
	thread_id    TEXT,
	external_ref TEXT
);
`

func openDB(path, schema string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection per handle keeps SQLite happy under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return db, nil
}

// withTx runs fn in a single transaction with bounded retry on lock
// contention. Non-lock errors surface immediately; exhausting the retries
// returns ErrBusy.
func (s *Store) withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < lockRetries; attempt++ {
		err := runTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !isLocked(err) {
			return err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockDelay):
		}
	}
	s.logger.Warn("store write skipped: lock retries exhausted", "attempts", lockRetries, "err", lastErr)
	return fmt.Errorf("%w after %d attempts: %v", ErrBusy, lockRetries, lastErr)
}

func runTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// UpsertInbox inserts or replaces inbox rows in one transaction. Replacing by
// msg_id makes ingestion idempotent under at-least-once delivery.
func (s *Store) UpsertInbox(ctx context.Context, msgs []domain.InboxMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.withTx(ctx, s.inbox, func(tx *sql.Tx) error {
		for _, m := range msgs {
			_, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO messages
				 (content, time_sent, time_seen, type, sender, subject, msg_id, thread_id, external_ref)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.Content, nullTime(m.TimeSent), m.TimeSeen, string(m.Type),
				m.Sender, m.Subject, m.MsgID, m.ThreadID, m.ExternalRef,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyInboxChanges applies one classification pass in a single transaction:
// type updates for tagged rows, deletes for discarded ones.
func (s *Store) ApplyInboxChanges(ctx context.Context, changes []InboxChange) error {
	if len(changes) == 0 {
		return nil
	}
	return s.withTx(ctx, s.inbox, func(tx *sql.Tx) error {
		for _, ch := range changes {
			var err error
			if ch.Delete {
				_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE msg_id = ?`, ch.MsgID)
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE messages SET type = ? WHERE msg_id = ?`, string(ch.Type), ch.MsgID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SelectInboxByType(ctx context.Context, typ domain.MessageType, limit int) ([]domain.InboxMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.inbox.QueryContext(ctx,
		`SELECT content, time_sent, time_seen, type, sender, subject, msg_id, thread_id, external_ref
		 FROM messages WHERE type = ? ORDER BY time_seen LIMIT ?`, string(typ), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.InboxMessage
	for rows.Next() {
		var m domain.InboxMessage
		var sent sql.NullTime
		var typ string
		if err := rows.Scan(&m.Content, &sent, &m.TimeSeen, &typ,
			&m.Sender, &m.Subject, &m.MsgID, &m.ThreadID, &m.ExternalRef); err != nil {
			return nil, err
		}
		if sent.Valid {
			m.TimeSent = sent.Time
		}
		m.Type = domain.MessageType(typ)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountInboxTypes returns how many inbox rows carry any of the given types.
// The process loop uses it as its work-count probe.
func (s *Store) CountInboxTypes(ctx context.Context, types ...domain.MessageType) (int, error) {
	if len(types) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(types))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(types))
	for i, t := range types {
		args[i] = string(t)
	}

	var count int
	err := s.inbox.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE type IN (`+placeholders+`)`, args...,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DraftReplies moves processed messages to the outbox: the drafted replies
// commit first, then the originating inbox rows are deleted. A crash between
// the two commits leaves a row in both tables; the next pass re-drafts it
// idempotently (outbox upsert by msg_id) and the delete runs again.
func (s *Store) DraftReplies(ctx context.Context, replies []domain.OutboxMessage) error {
	if len(replies) == 0 {
		return nil
	}
	err := s.withTx(ctx, s.outbox, func(tx *sql.Tx) error {
		for _, r := range replies {
			_, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO messages
				 (content, time_sent, sender, subject, msg_id, thread_id, external_ref)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.Content, nullTime(r.TimeSent), r.Sender, r.Subject, r.MsgID, r.ThreadID, r.ExternalRef,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.withTx(ctx, s.inbox, func(tx *sql.Tx) error {
		for _, r := range replies {
			if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE msg_id = ?`, r.MsgID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SelectOutbox(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.outbox.QueryContext(ctx,
		`SELECT content, time_sent, sender, subject, msg_id, thread_id, external_ref
		 FROM messages LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		var sent sql.NullTime
		if err := rows.Scan(&m.Content, &sent, &m.Sender, &m.Subject,
			&m.MsgID, &m.ThreadID, &m.ExternalRef); err != nil {
			return nil, err
		}
		if sent.Valid {
			m.TimeSent = sent.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteOutbox removes delivered replies in one transaction.
func (s *Store) DeleteOutbox(ctx context.Context, msgIDs []string) error {
	if len(msgIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, s.outbox, func(tx *sql.Tx) error {
		for _, id := range msgIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE msg_id = ?`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close checkpoints the WAL on both databases before closing so restarts and
// external readers see a single consolidated file.
func (s *Store) Close() error {
	for _, db := range []*sql.DB{s.inbox, s.outbox} {
		for attempt := 0; attempt < lockRetries; attempt++ {
			_, err := db.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`)
			if err == nil || !isLocked(err) {
				break
			}
			time.Sleep(lockDelay)
		}
	}

	inboxErr := s.inbox.Close()
	outboxErr := s.outbox.Close()
	if inboxErr != nil {
		return inboxErr
	}
	return outboxErr
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
