package store

import (
	"context"
	"fmt"
	"time"
)

// AddTombstone records that the remote notification remoteID fired locally.
// Re-adding an existing tombstone keeps the original fire time.
func (s *SQLiteStore) AddTombstone(ctx context.Context, remoteID int64, firedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO remote_tombstones (remote_id, fired_at) VALUES (?, ?)",
		remoteID, firedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("adding tombstone for remote notification %d: %w", remoteID, err)
	}
	return nil
}

// GetTombstones returns all tombstones, oldest first.
func (s *SQLiteStore) GetTombstones(ctx context.Context) ([]Tombstone, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT remote_id, fired_at FROM remote_tombstones ORDER BY fired_at ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying tombstones: %w", err)
	}
	defer rows.Close()

	var tombstones []Tombstone
	for rows.Next() {
		var t Tombstone
		if err := rows.Scan(&t.RemoteID, &t.FiredAt); err != nil {
			return nil, fmt.Errorf("scanning tombstone row: %w", err)
		}
		tombstones = append(tombstones, t)
	}

	return tombstones, rows.Err()
}

// DeleteTombstone forgets a tombstone once the remote no longer reports it.
func (s *SQLiteStore) DeleteTombstone(ctx context.Context, remoteID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM remote_tombstones WHERE remote_id = ?", remoteID)
	if err != nil {
		return fmt.Errorf("deleting tombstone %d: %w", remoteID, err)
	}
	return nil
}
