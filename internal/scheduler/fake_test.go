package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/store"
	appsync "github.com/nhle/remindme/internal/sync"
)

type deleteCall struct {
	ids        []int64
	privileged bool
}

// fakeRemote is an in-memory remote.Service.
type fakeRemote struct {
	mu sync.Mutex

	items    map[int64]model.Notification
	fetchErr error

	// deleteErr decides the outcome of each Delete call.
	deleteErr   func(privileged bool) error
	deleteCalls []deleteCall

	admin      bool
	adminErr   error
	adminCalls int
}

func newFakeRemote(items ...model.Notification) *fakeRemote {
	f := &fakeRemote{items: make(map[int64]model.Notification)}
	for _, n := range items {
		f.items[n.RemoteID] = n
	}
	return f
}

func (f *fakeRemote) FetchAll(ctx context.Context) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]model.Notification, 0, len(f.items))
	for _, n := range f.items {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeRemote) Delete(ctx context.Context, ids []int64, privileged bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteCalls = append(f.deleteCalls, deleteCall{ids: append([]int64(nil), ids...), privileged: privileged})
	if f.deleteErr != nil {
		if err := f.deleteErr(privileged); err != nil {
			return err
		}
	}
	for _, id := range ids {
		delete(f.items, id)
	}
	return nil
}

func (f *fakeRemote) FetchAdminStatus(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.adminCalls++
	return f.admin, f.adminErr
}

func (f *fakeRemote) calls() []deleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deleteCall(nil), f.deleteCalls...)
}

// failingDeleteStore fails DeleteByID until failures reaches zero.
type failingDeleteStore struct {
	store.Store
	failures int
}

func (s *failingDeleteStore) DeleteByID(ctx context.Context, localID string) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk I/O error")
	}
	return s.Store.DeleteByID(ctx, localID)
}

// recorder collects delivered notifications.
type recorder struct {
	mu  sync.Mutex
	got []model.Notification
	ch  chan model.Notification
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan model.Notification, 16)}
}

func (r *recorder) deliver(n model.Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()

	select {
	case r.ch <- n:
	default:
	}
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	titles := make([]string, len(r.got))
	for i, n := range r.got {
		titles[i] = n.Title
	}
	return titles
}

var testNow = time.UnixMilli(1_800_000_000_000)

func testClock() time.Time { return testNow }

var testSchedulerConfig = model.SchedulerConfig{
	PollIntervalMs:  10,
	ToleranceMs:     1000,
	SampleSize:      10,
	LowWatermark:    3,
	SyncIntervalSec: 30,
}

// newTestScheduler wires a scheduler with a coordinator over st and fake,
// both reading testClock.
func newTestScheduler(st store.Store, fake *fakeRemote, rec *recorder) (*Scheduler, *PrivilegeCache) {
	logger := zap.NewNop()
	privilege := NewPrivilegeCache(fake, time.Second, logger)
	coordinator := appsync.New(st, fake, testSchedulerConfig, logger, appsync.WithClock(testClock))

	s := New(
		ConfigFrom(testSchedulerConfig, model.RemoteConfig{TimeoutSec: 1}),
		st, fake, privilege, rec.deliver, logger,
		WithClock(testClock),
		WithReconciler(coordinator),
	)
	return s, privilege
}
