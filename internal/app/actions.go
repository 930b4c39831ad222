package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/remote"
	"github.com/nhle/remindme/internal/scheduler"
	"github.com/nhle/remindme/internal/store"
)

var (
	// ErrNotAdmin is returned by administrator-only operations for
	// regular users.
	ErrNotAdmin = errors.New("this command is available only to administrators")

	// ErrAdminUnverified is returned when the service does not say whether
	// the user is an administrator.
	ErrAdminUnverified = errors.New("could not verify administrative privileges, try again later")
)

// AddNotification builds a notification from d, uploads it first when
// requested, and stores it. A failed upload aborts the add. While the
// scheduler runs, the new notification is queued by its worker.
func (r *Runtime) AddNotification(ctx context.Context, d model.Draft) (model.Notification, error) {
	n, err := d.Build(r.now())
	if err != nil {
		return model.Notification{}, err
	}

	if d.Upload {
		res, err := r.Client.Upload(ctx, []model.Notification{n})
		if err != nil {
			return model.Notification{}, fmt.Errorf("sending notification to the service: %w", err)
		}
		if id := res.WebIDs[0]; id > 0 {
			n.RemoteID = id
		}
		r.Logger.Info("Uploaded notification",
			zap.Int64("remote_id", n.RemoteID),
			zap.Strings("statuses", res.AllStatuses()),
		)
	}

	if r.Scheduler.Running() {
		return r.Scheduler.Add(ctx, n)
	}

	stored, err := scheduler.Persist(ctx, r.Store, n)
	if err != nil {
		return model.Notification{}, fmt.Errorf("storing notification: %w", err)
	}
	r.Logger.Info("Added notification", zap.String("local_id", stored.LocalID), zap.Int64("remote_id", stored.RemoteID))
	return stored, nil
}

// ListPending returns every stored notification in firing order.
func (r *Runtime) ListPending(ctx context.Context) ([]model.Notification, error) {
	return r.Store.FindEarliest(ctx, 0)
}

// ListRemote returns the notifications the service holds for the user.
func (r *Runtime) ListRemote(ctx context.Context) ([]model.Notification, error) {
	if !r.HasCredentials() {
		return nil, ErrNotLoggedIn
	}
	return r.Client.FetchAll(ctx)
}

// DeleteRemote deletes remote notifications through the endpoint matching
// the user's privilege and drops their local copies.
func (r *Runtime) DeleteRemote(ctx context.Context, ids []int64) error {
	if !r.HasCredentials() {
		return ErrNotLoggedIn
	}
	if r.Scheduler.Running() {
		return r.Scheduler.DeleteRemote(ctx, ids)
	}

	if _, err := scheduler.ManualDelete(ctx, r.Client, r.Privilege, ids); err != nil {
		return err
	}
	for _, id := range ids {
		n, err := r.Store.FindByRemoteID(ctx, id)
		if err != nil {
			return fmt.Errorf("looking up local copy of %d: %w", id, err)
		}
		if n == nil {
			continue
		}
		if err := r.Store.DeleteByID(ctx, n.LocalID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("deleting local copy of %d: %w", id, err)
		}
	}
	return nil
}

// RequestSync makes the scheduler reconcile on its next tick.
func (r *Runtime) RequestSync() {
	r.Coordinator.RequestSync()
}

// Login validates username and password against the service, then stores
// the password in the keyring and the username in the config file. The
// candidate credentials are checked on a separate client, so the scheduler
// keeps using the previous ones until every step has succeeded.
func (r *Runtime) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	candidate := remote.NewClient(r.Config.Remote.BaseURL, r.Config.Remote.Timeout())
	candidate.SetCredentials(username, password)
	if err := candidate.ValidateCredentials(ctx); err != nil {
		if remote.IsAuthError(err) {
			return fmt.Errorf("the service rejected the credentials for %s", username)
		}
		return fmt.Errorf("validating credentials: %w", err)
	}

	if err := r.savePassword(username, password); err != nil {
		return fmt.Errorf("storing password: %w", err)
	}
	prevUser := r.Config.Remote.Username
	r.Config.Remote.Username = username
	if err := model.SaveConfig(r.ConfigPath, r.Config); err != nil {
		r.Config.Remote.Username = prevUser
		return err
	}

	r.Client.SetCredentials(username, password)
	r.resetPrivilege(ctx)
	r.RequestSync()
	r.Logger.Info("Logged in", zap.String("username", username))
	return nil
}

// Register creates a regular account and logs in with it.
func (r *Runtime) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	if err := r.Client.Register(ctx, username, password); err != nil {
		return fmt.Errorf("registering %s: %w", username, err)
	}
	r.Logger.Info("Registered account", zap.String("username", username))
	return r.Login(ctx, username, password)
}

// resetPrivilege forgets the cached admin status. While the worker runs
// the reset is handed to it; the cache is only touched directly once the
// worker has stopped.
func (r *Runtime) resetPrivilege(ctx context.Context) {
	if !r.Scheduler.Running() {
		r.Privilege.Reset()
		return
	}

	err := r.Scheduler.ResetPrivilege(ctx)
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrStopped):
		r.Privilege.Reset()
	default:
		r.Logger.Warn("Admin status not reset, it is re-read after the next restart", zap.Error(err))
	}
}

// RequireAdmin asks the service directly whether the user is an
// administrator. Unlike the cached status it refuses when the answer is
// unknown.
func (r *Runtime) RequireAdmin(ctx context.Context) error {
	if !r.HasCredentials() {
		return ErrNotLoggedIn
	}

	admin, err := r.Client.FetchAdminStatus(ctx)
	switch {
	case errors.Is(err, remote.ErrUndetermined):
		return ErrAdminUnverified
	case err != nil:
		return fmt.Errorf("verifying admin status: %w", err)
	case !admin:
		return ErrNotAdmin
	}
	return nil
}

// AdminStatus returns the cached admin status used for deletions,
// resolving it on first use.
func (r *Runtime) AdminStatus(ctx context.Context) (bool, error) {
	if !r.HasCredentials() {
		return false, ErrNotLoggedIn
	}
	if r.Scheduler.Running() {
		return r.Scheduler.IsAdmin(ctx)
	}
	return r.Privilege.IsAdmin(ctx), nil
}

// AddUser creates or updates another account. Administrators only.
func (r *Runtime) AddUser(ctx context.Context, username, password string, admin bool) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if err := r.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := r.Client.RegisterUser(ctx, username, password, admin); err != nil {
		return fmt.Errorf("creating user %s: %w", username, err)
	}
	r.Logger.Info("Created or updated user", zap.String("username", username), zap.Bool("admin", admin))
	return nil
}

// DeleteUsers removes accounts. Administrators only.
func (r *Runtime) DeleteUsers(ctx context.Context, usernames []string) error {
	if len(usernames) == 0 {
		return fmt.Errorf("no usernames given")
	}
	if err := r.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := r.Client.DeleteUsers(ctx, usernames); err != nil {
		return fmt.Errorf("deleting users %v: %w", usernames, err)
	}
	r.Logger.Info("Deleted users", zap.Strings("usernames", usernames))
	return nil
}

// ParseIDs reads a comma separated list of remote IDs. Tokens that are not
// positive integers are returned in invalid.
func ParseIDs(s string) (ids []int64, invalid []string) {
	for _, tok := range splitList(s) {
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil || id <= 0 {
			invalid = append(invalid, tok)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}

// ParseNames reads a comma separated list of usernames.
func ParseNames(s string) []string {
	return splitList(s)
}

func splitList(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
