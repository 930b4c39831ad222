package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/metrics"
	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/remote"
	"github.com/nhle/remindme/internal/store"
	appsync "github.com/nhle/remindme/internal/sync"
)

var (
	// ErrStopped is returned by commands sent to a scheduler that has stopped.
	ErrStopped = errors.New("scheduler stopped")

	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// DeliverFunc presents a due notification. It must return quickly; its
// failures are not retried.
type DeliverFunc func(model.Notification)

// Reconciler merges remote state into the store and queue once per tick.
type Reconciler interface {
	Reconcile(ctx context.Context, q appsync.Queue) appsync.Report
}

// Config holds the loop tuning knobs.
type Config struct {
	PollInterval  time.Duration
	Tolerance     time.Duration
	SampleSize    int
	RemoteTimeout time.Duration
}

// ConfigFrom converts the persisted scheduler settings.
func ConfigFrom(sc model.SchedulerConfig, rc model.RemoteConfig) Config {
	return Config{
		PollInterval:  sc.PollInterval(),
		Tolerance:     sc.Tolerance(),
		SampleSize:    sc.SampleSize,
		RemoteTimeout: rc.Timeout(),
	}
}

// Scheduler is the driving loop. A single worker goroutine owns the due
// queue; Add, ForgetRemote, Pending and ResetPrivilege hand work to it over
// a command channel.
type Scheduler struct {
	cfg        Config
	store      store.Store
	remote     remote.Service
	reconciler Reconciler
	privilege  *PrivilegeCache
	deliver    DeliverFunc
	logger     *zap.Logger
	now        func() time.Time

	// Worker-owned state.
	queue *DueQueue

	// delivered maps LocalIDs whose callback already ran, but whose local
	// delete failed, to the fire time they were delivered for. A retry at
	// the same time skips the callback; a rescheduled copy is delivered again.
	delivered map[string]time.Time

	cmdCh  chan command
	stopCh chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithReconciler sets the remote reconciliation step. Without one the
// scheduler only fires locally stored notifications.
func WithReconciler(r Reconciler) Option {
	return func(s *Scheduler) { s.reconciler = r }
}

// New creates a stopped scheduler.
func New(
	cfg Config,
	st store.Store,
	svc remote.Service,
	privilege *PrivilegeCache,
	deliver DeliverFunc,
	logger *zap.Logger,
	opts ...Option,
) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 10
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 10 * time.Second
	}

	s := &Scheduler{
		cfg:       cfg,
		store:     st,
		remote:    svc,
		privilege: privilege,
		deliver:   deliver,
		logger:    logger,
		now:       time.Now,
		queue:     NewDueQueue(),
		delivered: make(map[string]time.Time),
		cmdCh:     make(chan command, 16),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker goroutine. It exits on Stop or when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	go s.run(ctx)
	s.logger.Info("Scheduler started",
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("tolerance", s.cfg.Tolerance),
		zap.Int("sample_size", s.cfg.SampleSize),
	)
	return nil
}

// Stop asks the worker to exit and waits for it. Items already being
// drained are finished first. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// Done is closed once the worker has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// run is the worker goroutine.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	defer s.logger.Info("Scheduler stopped")

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.tick(ctx)

		if !s.sleep(ctx) {
			return
		}
	}
}

// sleep waits one poll interval while serving commands. It returns false
// when the worker should exit.
func (s *Scheduler) sleep(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return false
		case <-ctx.Done():
			return false
		case cmd := <-s.cmdCh:
			s.handle(ctx, cmd)
		case <-timer.C:
			return true
		}
	}
}

// tick runs one iteration: reconcile, replenish, drain.
func (s *Scheduler) tick(ctx context.Context) {
	if s.reconciler != nil {
		report := s.reconciler.Reconcile(ctx, s.queue)
		if errors.Is(report.Err, remote.ErrUnauthorized) {
			s.privilege.Pin(false)
		}
		if len(report.Orphans) > 0 {
			s.retryOrphans(ctx, report.Orphans)
		}
	}

	s.replenish(ctx)

	for _, n := range s.queue.DrainDue(s.now(), s.cfg.Tolerance) {
		s.fire(ctx, n)
	}

	metrics.SetQueueSize(s.queue.Len())
}

// replenish offers the earliest stored notifications to the queue.
func (s *Scheduler) replenish(ctx context.Context) {
	rows, err := s.store.FindEarliest(ctx, s.cfg.SampleSize)
	if err != nil {
		s.logger.Error("Failed to sample local notifications", zap.Error(err))
		return
	}
	for _, n := range rows {
		if s.queue.Offer(n) {
			s.logger.Debug("Queued notification",
				zap.String("local_id", n.LocalID),
				zap.Time("fire_at", n.FireAt),
			)
		}
	}
}

// fire delivers n and removes it from the store and, best-effort, the remote.
func (s *Scheduler) fire(ctx context.Context, n model.Notification) {
	if at, ok := s.delivered[n.LocalID]; !ok || !at.Equal(n.FireAt) {
		s.safeDeliver(n)
		s.delivered[n.LocalID] = n.FireAt
		metrics.RecordDelivered()
	}

	if err := s.store.DeleteByID(ctx, n.LocalID); err != nil && !errors.Is(err, store.ErrNotFound) {
		metrics.RecordLocalDeleteFailure()
		s.logger.Error("Failed to delete delivered notification, retrying next iteration",
			zap.String("local_id", n.LocalID),
			zap.Error(err),
		)
		s.queue.Offer(n)
		return
	}
	delete(s.delivered, n.LocalID)

	if !n.IsRemote() {
		return
	}

	if err := s.deleteRemote(ctx, []int64{n.RemoteID}); err != nil {
		if err := s.store.AddTombstone(ctx, n.RemoteID, s.now()); err != nil {
			s.logger.Error("Failed to record tombstone",
				zap.Int64("remote_id", n.RemoteID),
				zap.Error(err),
			)
		}
	}
}

// safeDeliver runs the delivery callback, containing any panic to this item.
func (s *Scheduler) safeDeliver(n model.Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Delivery callback panicked",
				zap.String("local_id", n.LocalID),
				zap.Any("panic", r),
			)
		}
	}()

	s.logger.Info("Delivering notification",
		zap.String("local_id", n.LocalID),
		zap.Int64("remote_id", n.RemoteID),
		zap.String("title", n.Title),
		zap.Time("fire_at", n.FireAt),
	)
	if s.deliver != nil {
		s.deliver(n)
	}
}

// deleteRemote deletes ids through the owner endpoint and, if that fails
// and the user is an administrator, retries once through the privileged one.
func (s *Scheduler) deleteRemote(ctx context.Context, ids []int64) error {
	err := s.callDelete(ctx, ids, false)
	if err == nil {
		s.logger.Info("Deleted remote notifications", zap.Int64s("remote_ids", ids))
		return nil
	}

	if errors.Is(err, remote.ErrUnauthorized) {
		s.privilege.Pin(false)
	}

	if !s.privilege.IsAdmin(ctx) {
		s.logger.Warn("Remote delete failed, leaving remote copy",
			zap.Int64s("remote_ids", ids),
			zap.String("reason", remote.Classify(err)),
			zap.Error(err),
		)
		return err
	}

	if err := s.callDelete(ctx, ids, true); err != nil {
		s.logger.Warn("Privileged remote delete failed, leaving remote copy",
			zap.Int64s("remote_ids", ids),
			zap.String("reason", remote.Classify(err)),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("Deleted remote notifications with privileged endpoint", zap.Int64s("remote_ids", ids))
	return nil
}

func (s *Scheduler) callDelete(ctx context.Context, ids []int64, privileged bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	defer cancel()

	operation := "delete"
	if privileged {
		operation = "delete_privileged"
	}

	start := time.Now()
	err := s.remote.Delete(ctx, ids, privileged)
	metrics.RecordRemoteCall(operation, remote.Classify(err), time.Since(start))
	return err
}

// retryOrphans re-attempts remote deletion of notifications that already
// fired locally but are still present remotely. Their tombstones stay until
// the remote stops reporting them.
func (s *Scheduler) retryOrphans(ctx context.Context, ids []int64) {
	s.logger.Info("Retrying remote delete of fired notifications", zap.Int64s("remote_ids", ids))
	_ = s.deleteRemote(ctx, ids)
}

// Running reports whether the worker goroutine is alive.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
