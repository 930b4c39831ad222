package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/remindme/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// notificationRow mirrors the notifications table.
type notificationRow struct {
	ID        string        `db:"id"`
	RemoteID  sql.NullInt64 `db:"remote_id"`
	Title     string        `db:"title"`
	Payload   string        `db:"payload"`
	FireAt    int64         `db:"fire_at"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

func (r notificationRow) toModel() model.Notification {
	return model.Notification{
		LocalID:  r.ID,
		RemoteID: r.RemoteID.Int64,
		Title:    r.Title,
		Payload:  r.Payload,
		FireAt:   time.UnixMilli(r.FireAt),
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases
	// shared across queries.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
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

// Insert persists a new notification under a fresh UUID.
func (s *SQLiteStore) Insert(ctx context.Context, n model.Notification) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, remote_id, title, payload, fire_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, nullableRemoteID(n.RemoteID), n.Title, n.Payload, n.FireAtMillis(), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("inserting notification: %w", err)
	}

	return id, nil
}

// DeleteByID removes a notification by its local ID.
func (s *SQLiteStore) DeleteByID(ctx context.Context, localID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", localID)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", localID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", localID, ErrNotFound)
	}
	return nil
}

// FindEarliest returns up to limit notifications, earliest fire time first.
// Rows sharing a fire time come back in insertion order.
func (s *SQLiteStore) FindEarliest(ctx context.Context, limit int) ([]model.Notification, error) {
	query := "SELECT * FROM notifications ORDER BY fire_at ASC, created_at ASC, rowid ASC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying earliest notifications: %w", err)
	}

	out := make([]model.Notification, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// FindByRemoteID looks up a notification by the ID the remote service assigned.
func (s *SQLiteStore) FindByRemoteID(ctx context.Context, remoteID int64) (*model.Notification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM notifications WHERE remote_id = ?", remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification by remote id %d: %w", remoteID, err)
	}
	n := row.toModel()
	return &n, nil
}

// UpsertByRemoteID reconciles a remote copy into the local table inside a
// single transaction, preserving the local ID of an existing row.
func (s *SQLiteStore) UpsertByRemoteID(ctx context.Context, n model.Notification) (model.Notification, error) {
	if !n.IsRemote() {
		return model.Notification{}, fmt.Errorf("upserting notification %q: remote id is not set", n.Title)
	}
	if err := n.Validate(); err != nil {
		return model.Notification{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Notification{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var existing notificationRow
	err = tx.GetContext(ctx, &existing, "SELECT * FROM notifications WHERE remote_id = ?", n.RemoteID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		n.LocalID = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (id, remote_id, title, payload, fire_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.LocalID, n.RemoteID, n.Title, n.Payload, n.FireAtMillis(), now, now,
		)
		if err != nil {
			return model.Notification{}, fmt.Errorf("inserting remote notification %d: %w", n.RemoteID, err)
		}
	case err != nil:
		return model.Notification{}, fmt.Errorf("getting notification by remote id %d: %w", n.RemoteID, err)
	default:
		n.LocalID = existing.ID
		_, err = tx.ExecContext(ctx, `
			UPDATE notifications SET title = ?, payload = ?, fire_at = ?, updated_at = ?
			WHERE id = ?`,
			n.Title, n.Payload, n.FireAtMillis(), now, n.LocalID,
		)
		if err != nil {
			return model.Notification{}, fmt.Errorf("updating notification %s: %w", n.LocalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Notification{}, fmt.Errorf("committing upsert of remote notification %d: %w", n.RemoteID, err)
	}

	n.FireAt = time.UnixMilli(n.FireAtMillis())
	return n, nil
}

// Count returns the number of stored notifications.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM notifications"); err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return count, nil
}

// nullableRemoteID maps the zero sentinel to SQL NULL so the partial unique
// index only covers synced rows.
func nullableRemoteID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
