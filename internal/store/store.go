package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/remindme/internal/model"
)

// ErrNotFound is returned when a lookup or delete targets a missing row.
var ErrNotFound = errors.New("not found")

// Tombstone records a remote notification that already fired locally.
// Its remote deletion may still be pending.
type Tombstone struct {
	RemoteID int64
	FiredAt  time.Time
}

// Store defines the persistence interface for notifications and the
// tombstones of remote notifications that have already fired.
type Store interface {
	// === Notifications ===

	// Insert persists a new notification and returns its assigned local ID.
	Insert(ctx context.Context, n model.Notification) (string, error)

	// DeleteByID removes a notification. Returns ErrNotFound if absent.
	DeleteByID(ctx context.Context, localID string) error

	// FindEarliest returns up to limit notifications ordered by fire time.
	// A non-positive limit returns all rows.
	FindEarliest(ctx context.Context, limit int) ([]model.Notification, error)

	// FindByRemoteID returns the notification with the given remote ID,
	// or nil if none exists.
	FindByRemoteID(ctx context.Context, remoteID int64) (*model.Notification, error)

	// UpsertByRemoteID inserts n if no row carries its remote ID; otherwise it
	// updates the mutable fields and returns the existing row with its local ID.
	UpsertByRemoteID(ctx context.Context, n model.Notification) (model.Notification, error)

	// Count returns the number of stored notifications.
	Count(ctx context.Context) (int, error)

	// === Tombstones ===

	AddTombstone(ctx context.Context, remoteID int64, firedAt time.Time) error
	GetTombstones(ctx context.Context) ([]Tombstone, error)
	DeleteTombstone(ctx context.Context, remoteID int64) error
}
