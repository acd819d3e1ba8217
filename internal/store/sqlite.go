package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: every writer goes through the same handle, and an
	// in-memory database is not split across pool connections.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// GetSnapshot returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, "SELECT value FROM snapshots WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot %s: %w", key, err)
	}
	return value, nil
}

// PutSnapshot replaces the whole value stored under key.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("putting snapshot %s: %w", key, err)
	}
	return nil
}

// DeleteSnapshot removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", key, err)
	}
	return nil
}

// RegisterWorker inserts or refreshes the worker registration of a scope.
func (s *SQLiteStore) RegisterWorker(ctx context.Context, reg WorkerRegistration) error {
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worker_registrations (scope, script_url, registered_at) VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET script_url = excluded.script_url`,
		reg.Scope, reg.ScriptURL, reg.RegisteredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("registering worker for %s: %w", reg.Scope, err)
	}
	return nil
}

// GetWorker returns the registration of scope, or ErrNotFound.
func (s *SQLiteStore) GetWorker(ctx context.Context, scope string) (*WorkerRegistration, error) {
	var reg WorkerRegistration
	err := s.db.GetContext(ctx, &reg,
		"SELECT scope, script_url, registered_at FROM worker_registrations WHERE scope = ?", scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting worker for %s: %w", scope, err)
	}
	return &reg, nil
}

// SavePushSubscription stores the subscription of a registered scope.
func (s *SQLiteStore) SavePushSubscription(ctx context.Context, scope string, sub *webpush.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO push_subscriptions (scope, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		scope, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving push subscription for %s: %w", scope, err)
	}
	return nil
}

// GetPushSubscription returns the subscription of scope, or ErrNotFound.
func (s *SQLiteStore) GetPushSubscription(ctx context.Context, scope string) (*webpush.Subscription, error) {
	var row struct {
		Endpoint string `db:"endpoint"`
		P256dh   string `db:"p256dh"`
		Auth     string `db:"auth"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT endpoint, p256dh, auth FROM push_subscriptions WHERE scope = ?", scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting push subscription for %s: %w", scope, err)
	}
	return &webpush.Subscription{
		Endpoint: row.Endpoint,
		Keys:     webpush.Keys{P256dh: row.P256dh, Auth: row.Auth},
	}, nil
}

// DeletePushSubscription removes the subscription of scope.
func (s *SQLiteStore) DeletePushSubscription(ctx context.Context, scope string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE scope = ?", scope); err != nil {
		return fmt.Errorf("deleting push subscription for %s: %w", scope, err)
	}
	return nil
}
