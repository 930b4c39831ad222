// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// InsertLocal stores a local-only notification and returns its local ID.
func InsertLocal(t *testing.T, s store.Store, title string, fireAt time.Time) string {
	t.Helper()

	id, err := s.Insert(context.Background(), model.Notification{Title: title, FireAt: fireAt})
	if err != nil {
		t.Fatalf("inserting %q: %v", title, err)
	}
	return id
}

// InsertRemote stores a copy of a remote notification as a sync would and
// returns the stored row.
func InsertRemote(t *testing.T, s store.Store, remoteID int64, title string, fireAt time.Time) model.Notification {
	t.Helper()

	n, err := s.UpsertByRemoteID(context.Background(), model.Notification{
		RemoteID: remoteID,
		Title:    title,
		FireAt:   fireAt,
	})
	if err != nil {
		t.Fatalf("upserting remote %d: %v", remoteID, err)
	}
	return n
}
