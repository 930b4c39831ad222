package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/remote"
	"github.com/nhle/remindme/internal/store"
)

// command is a unit of foreground work executed on the worker goroutine.
type command struct {
	run  func(ctx context.Context) error
	done chan error
}

// handle runs cmd on the worker. The reply channel is buffered so a caller
// that gave up never blocks the loop.
func (s *Scheduler) handle(ctx context.Context, cmd command) {
	cmd.done <- cmd.run(ctx)
}

// exec hands run to the worker and waits for its result.
func (s *Scheduler) exec(ctx context.Context, run func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Running() {
		return ErrStopped
	}

	cmd := command{run: run, done: make(chan error, 1)}
	select {
	case s.cmdCh <- cmd:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add persists n and queues it. The returned copy carries its LocalID.
// A remote notification may already have been imported by a sync since its
// upload; its existing row is reused.
func (s *Scheduler) Add(ctx context.Context, n model.Notification) (model.Notification, error) {
	if err := n.Validate(); err != nil {
		return model.Notification{}, err
	}

	var added model.Notification
	err := s.exec(ctx, func(ctx context.Context) error {
		stored, err := Persist(ctx, s.store, n)
		if err != nil {
			return err
		}
		added = stored
		if queued, ok := s.queue.Get(added.LocalID); ok && !queued.FireAt.Equal(added.FireAt) {
			s.queue.Remove(added.LocalID)
		}
		s.queue.Offer(added)
		s.logger.Info("Added notification",
			zap.String("local_id", added.LocalID),
			zap.Int64("remote_id", added.RemoteID),
			zap.Time("fire_at", added.FireAt),
		)
		return nil
	})
	return added, err
}

// Persist stores n: local-only notifications are inserted, remote ones are
// upserted by RemoteID so a copy imported by a sync keeps its LocalID.
func Persist(ctx context.Context, st store.Store, n model.Notification) (model.Notification, error) {
	if n.IsRemote() {
		stored, err := st.UpsertByRemoteID(ctx, n)
		if err != nil {
			return model.Notification{}, fmt.Errorf("storing remote notification %d: %w", n.RemoteID, err)
		}
		return stored, nil
	}

	id, err := st.Insert(ctx, n)
	if err != nil {
		return model.Notification{}, err
	}
	n.LocalID = id
	return n, nil
}

// Pending returns the queued notifications in firing order.
func (s *Scheduler) Pending(ctx context.Context) ([]model.Notification, error) {
	var pending []model.Notification
	err := s.exec(ctx, func(ctx context.Context) error {
		pending = s.queue.Snapshot()
		return nil
	})
	return pending, err
}

// ResetPrivilege forgets the cached admin status, e.g. after a new login.
func (s *Scheduler) ResetPrivilege(ctx context.Context) error {
	return s.exec(ctx, func(ctx context.Context) error {
		s.privilege.Reset()
		return nil
	})
}

// IsAdmin reports the cached admin status, resolving it if needed.
func (s *Scheduler) IsAdmin(ctx context.Context) (bool, error) {
	var admin bool
	err := s.exec(ctx, func(ctx context.Context) error {
		admin = s.privilege.IsAdmin(ctx)
		return nil
	})
	return admin, err
}

// DeleteRemote deletes remote notifications by ID on the user's behalf and
// drops their local copies so they do not fire.
func (s *Scheduler) DeleteRemote(ctx context.Context, ids []int64) error {
	return s.exec(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
		defer cancel()

		if _, err := ManualDelete(ctx, s.remote, s.privilege, ids); err != nil {
			return err
		}
		for _, id := range ids {
			s.forgetRemote(ctx, id)
		}
		return nil
	})
}

// forgetRemote drops the local copy of a remote notification.
func (s *Scheduler) forgetRemote(ctx context.Context, remoteID int64) {
	n, err := s.store.FindByRemoteID(ctx, remoteID)
	if err != nil {
		s.logger.Warn("Failed to look up local copy", zap.Int64("remote_id", remoteID), zap.Error(err))
		return
	}
	if n == nil {
		return
	}
	s.queue.Remove(n.LocalID)
	if err := s.store.DeleteByID(ctx, n.LocalID); err != nil {
		s.logger.Warn("Failed to delete local copy", zap.String("local_id", n.LocalID), zap.Error(err))
	}
}

// ManualDelete deletes ids through the endpoint matching the user's
// privilege: administrators use the privileged endpoint directly.
func ManualDelete(ctx context.Context, svc remote.Service, privilege *PrivilegeCache, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	privileged := privilege.IsAdmin(ctx)
	if err := svc.Delete(ctx, ids, privileged); err != nil {
		if remote.IsAuthError(err) {
			privilege.Pin(false)
		}
		return privileged, fmt.Errorf("deleting remote notifications %v: %w", ids, err)
	}
	return privileged, nil
}
