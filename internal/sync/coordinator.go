package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/metrics"
	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/remote"
	"github.com/nhle/remindme/internal/store"
)

// SyncState represents the current state of reconciliation.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus is the observable state of the coordinator.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// Queue is the view of the due queue that reconciliation needs.
type Queue interface {
	Len() int
	Get(localID string) (model.Notification, bool)
	Offer(n model.Notification) bool
	Remove(localID string) bool
}

// Fetcher lists the remote notifications of the authenticated user.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]model.Notification, error)
}

// Report summarizes one Reconcile call. Err is informational: a failed
// cycle is already logged and simply skipped.
type Report struct {
	Ran         bool
	Fetched     int
	Imported    int
	Rescheduled int
	Duplicates  int

	// Orphans are remote IDs that already fired locally but are still
	// reported by the service. Their remote deletion should be retried.
	Orphans []int64

	Err error
}

// Coordinator merges the remote service's notifications into the local
// store and the due queue.
type Coordinator struct {
	store        store.Store
	remote       Fetcher
	logger       *zap.Logger
	lowWatermark int
	interval     time.Duration
	timeout      time.Duration
	now          func() time.Time

	// Only touched by the goroutine calling Reconcile.
	lastSync       time.Time
	lastOrphanScan time.Time

	mu     gosync.Mutex
	status SyncStatus
	forced bool
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithFetchTimeout bounds each remote fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a Coordinator gated by cfg.LowWatermark and cfg.SyncInterval().
func New(s store.Store, f Fetcher, cfg model.SchedulerConfig, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        s,
		remote:       f,
		logger:       logger,
		lowWatermark: cfg.LowWatermark,
		interval:     cfg.SyncInterval(),
		timeout:      fetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current sync status. Safe to call from any goroutine.
func (c *Coordinator) Status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RequestSync makes the next Reconcile call run regardless of the gate.
// Safe to call from any goroutine.
func (c *Coordinator) RequestSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forced = true
}

// Due reports whether a Reconcile call with the given queue size would run.
func (c *Coordinator) Due(queueLen int) bool {
	c.mu.Lock()
	forced := c.forced
	c.mu.Unlock()

	if forced || queueLen < c.lowWatermark || c.lastSync.IsZero() {
		return true
	}
	return c.now().Sub(c.lastSync) >= c.interval
}

// Reconcile runs one reconciliation cycle if the gate allows it. It never
// returns an error; failures are logged and reported in Report.Err.
func (c *Coordinator) Reconcile(ctx context.Context, q Queue) Report {
	if !c.Due(q.Len()) {
		return Report{}
	}

	now := c.now()
	c.lastSync = now
	c.mu.Lock()
	c.forced = false
	c.mu.Unlock()
	c.setStatus(SyncRunning, nil)

	report := Report{Ran: true}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	start := time.Now()
	items, err := c.remote.FetchAll(fetchCtx)
	cancel()
	metrics.RecordRemoteCall("fetch", remote.Classify(err), time.Since(start))

	if err != nil {
		report.Err = err
		c.setStatus(SyncError, err)
		metrics.RecordReconciliation("failed")

		if remote.IsAuthError(err) {
			c.logger.Warn("Remote rejected credentials, skipping sync", zap.Error(err))
		} else {
			c.logger.Warn("Remote fetch failed, skipping sync",
				zap.String("reason", remote.Classify(err)),
				zap.Error(err),
			)
		}
		return report
	}

	report.Fetched = len(items)

	tombstoned, err := c.tombstoneSet(ctx)
	if err != nil {
		c.logger.Error("Failed to load tombstones", zap.Error(err))
	}

	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		seen[item.RemoteID] = true

		if tombstoned[item.RemoteID] {
			report.Orphans = append(report.Orphans, item.RemoteID)
			continue
		}

		c.merge(ctx, q, item, &report)
	}

	c.pruneTombstones(ctx, tombstoned, seen)

	// Orphan deletes are throttled to the sync interval even when the
	// watermark forces a sync every tick.
	if len(report.Orphans) > 0 {
		if !c.lastOrphanScan.IsZero() && now.Sub(c.lastOrphanScan) < c.interval {
			report.Orphans = nil
		} else {
			c.lastOrphanScan = now
		}
	}

	c.setStatus(SyncIdle, nil)
	metrics.RecordReconciliation("ok")
	c.logger.Debug("Reconciled remote notifications",
		zap.Int("fetched", report.Fetched),
		zap.Int("imported", report.Imported),
		zap.Int("rescheduled", report.Rescheduled),
		zap.Int("orphans", len(report.Orphans)),
	)
	return report
}

// merge upserts one remote notification and brings the queue in line with it.
func (c *Coordinator) merge(ctx context.Context, q Queue, item model.Notification, report *Report) {
	if err := item.Validate(); err != nil {
		c.logger.Warn("Ignoring invalid remote notification",
			zap.Int64("remote_id", item.RemoteID),
			zap.Error(err),
		)
		return
	}

	local, err := c.store.UpsertByRemoteID(ctx, item)
	if err != nil {
		c.logger.Error("Failed to store remote notification",
			zap.Int64("remote_id", item.RemoteID),
			zap.Error(err),
		)
		return
	}

	queued, tracked := q.Get(local.LocalID)
	switch {
	case !tracked:
		q.Offer(local)
		report.Imported++
	case !queued.FireAt.Equal(local.FireAt):
		q.Remove(local.LocalID)
		q.Offer(local)
		report.Rescheduled++
		c.logger.Info("Rescheduled notification after remote update",
			zap.String("local_id", local.LocalID),
			zap.Int64("remote_id", local.RemoteID),
			zap.Time("fire_at", local.FireAt),
		)
	default:
		report.Duplicates++
		metrics.RecordDuplicateSuppressed()
		c.logger.Debug("Skipped duplicated notification",
			zap.String("local_id", local.LocalID),
			zap.Int64("remote_id", local.RemoteID),
		)
	}
}

func (c *Coordinator) tombstoneSet(ctx context.Context) (map[int64]bool, error) {
	tombstones, err := c.store.GetTombstones(ctx)
	if err != nil {
		return map[int64]bool{}, err
	}
	set := make(map[int64]bool, len(tombstones))
	for _, t := range tombstones {
		set[t.RemoteID] = true
	}
	return set, nil
}

// pruneTombstones forgets tombstones for notifications the remote no longer reports.
func (c *Coordinator) pruneTombstones(ctx context.Context, tombstoned, seen map[int64]bool) {
	for id := range tombstoned {
		if seen[id] {
			continue
		}
		if err := c.store.DeleteTombstone(ctx, id); err != nil {
			c.logger.Warn("Failed to prune tombstone", zap.Int64("remote_id", id), zap.Error(err))
		}
	}
}

// setStatus updates the observable sync status.
func (c *Coordinator) setStatus(state SyncState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.State = state
	c.status.Error = err
	if state == SyncIdle && err == nil {
		c.status.LastSync = c.now()
	}
}
