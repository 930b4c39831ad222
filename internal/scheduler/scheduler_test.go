package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/remote"
	"github.com/nhle/remindme/tests/testutil"
)

func TestTickDeliversOnlyDueLocalNotifications(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote()
	rec := newRecorder()
	s, _ := newTestScheduler(st, fake, rec)
	ctx := context.Background()

	testutil.InsertLocal(t, st, "overdue", testNow.Add(-time.Minute))
	testutil.InsertLocal(t, st, "within tolerance", testNow.Add(800*time.Millisecond))
	testutil.InsertLocal(t, st, "tomorrow", testNow.Add(24*time.Hour))

	s.tick(ctx)

	assert.Equal(t, []string{"overdue", "within tolerance"}, rec.titles())
	assert.Equal(t, 1, s.queue.Len())

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Empty(t, fake.calls(), "local-only notifications never touch the remote")
}

func TestTickReplenishesAtMostSampleSize(t *testing.T) {
	st := testutil.NewTestStore(t)
	s, _ := newTestScheduler(st, newFakeRemote(), newRecorder())

	for i := 0; i < 25; i++ {
		testutil.InsertLocal(t, st, "future", testNow.Add(time.Duration(i+1)*time.Hour))
	}

	s.tick(context.Background())
	assert.Equal(t, testSchedulerConfig.SampleSize, s.queue.Len())

	s.tick(context.Background())
	assert.Equal(t, testSchedulerConfig.SampleSize, s.queue.Len(), "resampling must not duplicate entries")
}

func TestRemotePastDueNotificationIsPersistedAndDelivered(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote(model.Notification{
		RemoteID: 5,
		Title:    "from web",
		FireAt:   testNow.Add(-5000 * time.Millisecond),
	})
	rec := newRecorder()
	s, _ := newTestScheduler(st, fake, rec)

	s.tick(context.Background())

	assert.Equal(t, []string{"from web"}, rec.titles())

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Equal(t, []deleteCall{{ids: []int64{5}, privileged: false}}, fake.calls())
	assert.Zero(t, fake.adminCalls, "successful owner delete needs no admin lookup")
}

func TestFailedRemoteDeleteEscalatesOnceForAdmin(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote(model.Notification{RemoteID: 9, Title: "shared", FireAt: testNow})
	fake.admin = true
	fake.deleteErr = func(privileged bool) error {
		if privileged {
			return nil
		}
		return &remote.HTTPError{StatusCode: 403, Method: "DELETE", Path: "/notifications/delete/manually"}
	}
	rec := newRecorder()
	s, _ := newTestScheduler(st, fake, rec)

	s.tick(context.Background())

	assert.Equal(t, []deleteCall{
		{ids: []int64{9}, privileged: false},
		{ids: []int64{9}, privileged: true},
	}, fake.calls())
	assert.Len(t, rec.titles(), 1)

	tombstones, err := st.GetTombstones(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tombstones)
}

func TestFailedRemoteDeleteWithoutAdminDoesNotEscalate(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote(model.Notification{RemoteID: 9, Title: "shared", FireAt: testNow})
	fake.deleteErr = func(bool) error { return remote.ErrUnavailable }
	rec := newRecorder()
	s, _ := newTestScheduler(st, fake, rec)

	s.tick(context.Background())

	assert.Equal(t, []deleteCall{{ids: []int64{9}, privileged: false}}, fake.calls())
	assert.Len(t, rec.titles(), 1)

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "remote failure must not revert the local delete")

	tombstones, err := st.GetTombstones(context.Background())
	require.NoError(t, err)
	require.Len(t, tombstones, 1)
	assert.Equal(t, int64(9), tombstones[0].RemoteID)
}

func TestAdminStatusIsFetchedOnceAcrossDeletes(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote(
		model.Notification{RemoteID: 1, Title: "one", FireAt: testNow},
		model.Notification{RemoteID: 2, Title: "two", FireAt: testNow},
		model.Notification{RemoteID: 3, Title: "three", FireAt: testNow},
	)
	fake.admin = true
	fake.deleteErr = func(privileged bool) error {
		if privileged {
			return nil
		}
		return errors.New("not owner")
	}
	s, _ := newTestScheduler(st, fake, newRecorder())

	s.tick(context.Background())

	assert.Len(t, fake.calls(), 6)
	assert.Equal(t, 1, fake.adminCalls)
}

func TestFetchFailureStillDeliversDueLocalNotifications(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote()
	fake.fetchErr = remote.ErrUnavailable
	rec := newRecorder()
	s, _ := newTestScheduler(st, fake, rec)

	testutil.InsertLocal(t, st, "stretch", testNow.Add(-time.Second))
	s.queue.Offer(model.Notification{LocalID: "queued-only", Title: "already queued", FireAt: testNow})

	s.tick(context.Background())

	assert.ElementsMatch(t, []string{"stretch", "already queued"}, rec.titles())
	assert.Zero(t, s.queue.Len())

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUnauthorizedFetchPinsPrivilege(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote()
	fake.admin = true
	fake.fetchErr = &remote.AuthError{StatusCode: 401, Path: "/notifications/get"}
	s, privilege := newTestScheduler(st, fake, newRecorder())

	s.tick(context.Background())

	assert.True(t, privilege.Known())
	assert.False(t, privilege.IsAdmin(context.Background()))
	assert.Zero(t, fake.adminCalls)
}

func TestLocalDeleteFailureRetriesWithoutRedelivery(t *testing.T) {
	base := testutil.NewTestStore(t)
	st := &failingDeleteStore{Store: base, failures: 1}
	fake := newFakeRemote()
	rec := newRecorder()
	s, _ := newTestScheduler(st, fake, rec)

	testutil.InsertLocal(t, base, "water plants", testNow.Add(-time.Second))

	s.tick(context.Background())
	assert.Equal(t, []string{"water plants"}, rec.titles())
	assert.Equal(t, 1, s.queue.Len(), "item must stay queued after a failed local delete")

	count, err := base.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	s.tick(context.Background())
	assert.Equal(t, []string{"water plants"}, rec.titles(), "retry must not deliver again")
	assert.Zero(t, s.queue.Len())

	count, err = base.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRescheduledItemIsDeliveredAgainAfterFailedDelete(t *testing.T) {
	base := testutil.NewTestStore(t)
	st := &failingDeleteStore{Store: base, failures: 1}
	rec := newRecorder()
	s, _ := newTestScheduler(st, newFakeRemote(), rec)

	id := testutil.InsertLocal(t, base, "standup", testNow.Add(-time.Minute))

	s.tick(context.Background())
	require.Equal(t, []string{"standup"}, rec.titles())

	// A sync moves the still-queued copy to a new time.
	queued, ok := s.queue.Get(id)
	require.True(t, ok)
	s.queue.Remove(id)
	queued.FireAt = testNow.Add(-time.Second)
	s.queue.Offer(queued)

	s.tick(context.Background())
	assert.Equal(t, []string{"standup", "standup"}, rec.titles(), "the new fire time gets its own delivery")
	assert.Zero(t, s.queue.Len())
}

func TestAddReusesRowImportedBySync(t *testing.T) {
	st := testutil.NewTestStore(t)
	fireAt := testNow.Add(time.Hour)
	fake := newFakeRemote(model.Notification{RemoteID: 50, Title: "uploaded", FireAt: fireAt})
	s, _ := newTestScheduler(st, fake, newRecorder())
	ctx := context.Background()

	// The sync sees the upload before the add command runs.
	s.tick(ctx)
	imported, err := st.FindByRemoteID(ctx, 50)
	require.NoError(t, err)
	require.NotNil(t, imported)

	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	added, err := s.Add(ctx, model.Notification{RemoteID: 50, Title: "uploaded", FireAt: fireAt})
	require.NoError(t, err)
	assert.Equal(t, imported.LocalID, added.LocalID)

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestPersistInsertsLocalAndUpsertsRemote(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	local, err := Persist(ctx, st, model.Notification{Title: "tea", FireAt: testNow})
	require.NoError(t, err)
	assert.NotEmpty(t, local.LocalID)

	existing := testutil.InsertRemote(t, st, 8, "call", testNow)
	remoteCopy, err := Persist(ctx, st, model.Notification{RemoteID: 8, Title: "call", FireAt: testNow})
	require.NoError(t, err)
	assert.Equal(t, existing.LocalID, remoteCopy.LocalID)

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCancelledCommandNeverRuns(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote()
	s, privilege := newTestScheduler(st, fake, newRecorder())
	privilege.Pin(true)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.ResetPrivilege(ctx), context.Canceled)
	assert.True(t, privilege.Known())
}

func TestFiredRemoteNotificationIsNotReimported(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote(model.Notification{RemoteID: 12, Title: "stubborn", FireAt: testNow})
	fake.deleteErr = func(bool) error { return remote.ErrUnavailable }
	rec := newRecorder()
	s, _ := newTestScheduler(st, fake, rec)

	s.tick(context.Background())
	s.tick(context.Background())
	s.tick(context.Background())

	assert.Equal(t, []string{"stubborn"}, rec.titles())

	// One delete after firing, one orphan retry; further retries wait for the sync interval.
	assert.Len(t, fake.calls(), 2)

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPanickingDeliveryDoesNotAbortOtherItems(t *testing.T) {
	st := testutil.NewTestStore(t)
	var delivered []string
	deliver := func(n model.Notification) {
		if n.Title == "bad" {
			panic("renderer exploded")
		}
		delivered = append(delivered, n.Title)
	}

	logger := zap.NewNop()
	fake := newFakeRemote()
	s := New(
		ConfigFrom(testSchedulerConfig, model.RemoteConfig{TimeoutSec: 1}),
		st, fake, NewPrivilegeCache(fake, time.Second, logger), deliver, logger,
		WithClock(testClock),
	)

	testutil.InsertLocal(t, st, "bad", testNow.Add(-2*time.Second))
	testutil.InsertLocal(t, st, "good", testNow.Add(-time.Second))

	s.tick(context.Background())

	assert.Equal(t, []string{"good"}, delivered)
	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStartAddPendingStop(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote()
	rec := newRecorder()
	logger := zap.NewNop()

	s := New(
		Config{PollInterval: 10 * time.Millisecond, Tolerance: time.Second, SampleSize: 10, RemoteTimeout: time.Second},
		st, fake, NewPrivilegeCache(fake, time.Second, logger), rec.deliver, logger,
	)

	ctx := context.Background()
	_, err := s.Add(ctx, model.Notification{Title: "too early", FireAt: time.Now()})
	assert.ErrorIs(t, err, ErrStopped)

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)
	assert.True(t, s.Running())

	later, err := s.Add(ctx, model.Notification{Title: "later", FireAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.NotEmpty(t, later.LocalID)

	_, err = s.Add(ctx, model.Notification{Title: "now", FireAt: time.Now()})
	require.NoError(t, err)

	select {
	case n := <-rec.ch:
		assert.Equal(t, "now", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.LocalID, pending[0].LocalID)

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	_, err = s.Pending(ctx)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStopWhenContextCancelled(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote()
	logger := zap.NewNop()
	s := New(Config{PollInterval: time.Hour}, st, fake, NewPrivilegeCache(fake, time.Second, logger), nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not exit after context cancellation")
	}
}

func TestDeleteRemoteUsesPrivilegeAndDropsLocalCopy(t *testing.T) {
	st := testutil.NewTestStore(t)
	fake := newFakeRemote(model.Notification{RemoteID: 44, Title: "remote", FireAt: time.Now().Add(time.Hour)})
	fake.admin = true
	logger := zap.NewNop()
	privilege := NewPrivilegeCache(fake, time.Second, logger)

	testutil.InsertRemote(t, st, 44, "remote", time.Now().Add(time.Hour))

	s := New(Config{PollInterval: 10 * time.Millisecond}, st, fake, privilege, nil, logger)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.NoError(t, s.DeleteRemote(ctx, []int64{44}))

	assert.Equal(t, []deleteCall{{ids: []int64{44}, privileged: true}}, fake.calls())
	local, err := st.FindByRemoteID(ctx, 44)
	require.NoError(t, err)
	assert.Nil(t, local)

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	admin, err := s.IsAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, admin)
	assert.Equal(t, 1, fake.adminCalls)

	require.NoError(t, s.ResetPrivilege(ctx))
	_, err = s.IsAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.adminCalls)
}
