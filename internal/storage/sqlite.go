package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"nuclight.org/groupsync/internal/groups"
)

type DB struct {
	db *sql.DB
}

func NewDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers, including the concurrent option
	// batches of a ballot edit.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema. Messages reference conversations without
// ON DELETE CASCADE, so a group can only be deleted after the messages of its
// conversations are gone.
func (d *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS study_groups (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		term TEXT NOT NULL DEFAULT '',
		admin_id INTEGER NOT NULL REFERENCES users(id),
		password_hash TEXT NOT NULL DEFAULT '',
		notification_setting INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		modified_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS participants (
		group_id INTEGER NOT NULL REFERENCES study_groups(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		is_active INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (group_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY,
		group_id INTEGER NOT NULL REFERENCES study_groups(id) ON DELETE CASCADE,
		admin_id INTEGER NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		is_closed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_group_id ON conversations(group_id);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY,
		conversation_id INTEGER NOT NULL REFERENCES conversations(id),
		author_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		text TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP,
		UNIQUE (conversation_id, number)
	);

	CREATE TABLE IF NOT EXISTS ballots (
		id INTEGER PRIMARY KEY,
		group_id INTEGER NOT NULL REFERENCES study_groups(id) ON DELETE CASCADE,
		admin_id INTEGER NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_multiple_choice INTEGER NOT NULL DEFAULT 0,
		is_closed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_ballots_group_id ON ballots(group_id);

	CREATE TABLE IF NOT EXISTS ballot_options (
		id INTEGER PRIMARY KEY,
		ballot_id INTEGER NOT NULL REFERENCES ballots(id) ON DELETE CASCADE,
		text TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ballot_options_ballot_id ON ballot_options(ballot_id);

	CREATE TABLE IF NOT EXISTS votes (
		option_id INTEGER NOT NULL REFERENCES ballot_options(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		PRIMARY KEY (option_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_votes_user_id ON votes(user_id);
	`

	migrations := []string{
		// Author placeholder for messages stored before their author was known
		`ALTER TABLE messages ADD COLUMN pending_author_id INTEGER NOT NULL DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pending_author ON messages(pending_author_id) WHERE pending_author_id != 0`,
	}

	_, err := d.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	// Already applied migrations fail with "duplicate column"
	for _, migration := range migrations {
		_, err := d.db.Exec(migration)
		if err != nil && !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

func (d *DB) DB() *sql.DB {
	return d.db
}

// withTx runs fn in a transaction and rolls back if it fails.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &groups.StorageError{Op: op, Err: err}
}

// isUniqueConstraintError checks if the error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
