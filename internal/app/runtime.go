package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/credential"
	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/remote"
	"github.com/nhle/remindme/internal/scheduler"
	"github.com/nhle/remindme/internal/store"
	appsync "github.com/nhle/remindme/internal/sync"
)

// deliveryBacklog is how many delivered notifications may wait for a
// front end to present them.
const deliveryBacklog = 64

// ErrNotLoggedIn is returned when no username is configured or no
// password is stored for it.
var ErrNotLoggedIn = errors.New("not logged in: run 'remindme login' first")

// Runtime wires the long-lived components shared by the TUI, the daemon
// and the one-shot commands.
type Runtime struct {
	Config      *model.AppConfig
	ConfigPath  string
	Store       *store.SQLiteStore
	Client      *remote.Client
	Privilege   *scheduler.PrivilegeCache
	Coordinator *appsync.Coordinator
	Scheduler   *scheduler.Scheduler
	Logger      *zap.Logger

	deliveries chan model.Notification
	now        func() time.Time

	// Credential storage, replaceable in tests.
	lookupPassword func(username string) (string, error)
	savePassword   func(username, password string) error
}

// Open opens the local store at cfg.Store.Path and wires the remaining
// components around it.
func Open(cfgPath string, cfg *model.AppConfig, logger *zap.Logger) (*Runtime, error) {
	if cfg.Store.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", cfg.Store.Path, err)
	}
	return newRuntime(cfgPath, cfg, st, logger), nil
}

func newRuntime(cfgPath string, cfg *model.AppConfig, st *store.SQLiteStore, logger *zap.Logger) *Runtime {
	r := &Runtime{
		Config:         cfg,
		ConfigPath:     cfgPath,
		Store:          st,
		Client:         remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout()),
		Logger:         logger,
		deliveries:     make(chan model.Notification, deliveryBacklog),
		now:            time.Now,
		lookupPassword: credential.Password,
		savePassword:   credential.SetPassword,
	}

	r.Privilege = scheduler.NewPrivilegeCache(r.Client, cfg.Remote.Timeout(), logger.Named("privilege"))
	r.Coordinator = appsync.New(st, r.Client, cfg.Scheduler, logger.Named("sync"),
		appsync.WithFetchTimeout(cfg.Remote.Timeout()),
	)
	r.Scheduler = scheduler.New(
		scheduler.ConfigFrom(cfg.Scheduler, cfg.Remote),
		st, r.Client, r.Privilege, r.deliver, logger.Named("scheduler"),
		scheduler.WithReconciler(r.Coordinator),
	)
	return r
}

// LoadCredentials configures the client with the stored credentials of
// the configured user.
func (r *Runtime) LoadCredentials() error {
	username := r.Config.Remote.Username
	if username == "" {
		return ErrNotLoggedIn
	}

	password, err := r.lookupPassword(username)
	if errors.Is(err, credential.ErrNotFound) {
		return ErrNotLoggedIn
	}
	if err != nil {
		return fmt.Errorf("loading password for %s: %w", username, err)
	}

	r.Client.SetCredentials(username, password)
	return nil
}

// HasCredentials reports whether the client can authenticate.
func (r *Runtime) HasCredentials() bool {
	return r.Client.Username() != ""
}

// Start loads credentials and launches the scheduler. Without credentials
// only local notifications fire.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.LoadCredentials(); err != nil {
		r.Logger.Warn("Remote sync disabled", zap.Error(err))
	}
	return r.Scheduler.Start(ctx)
}

// Close stops the scheduler and closes the store.
func (r *Runtime) Close() error {
	r.Scheduler.Stop()
	return r.Store.Close()
}

// Deliveries yields notifications as they fire.
func (r *Runtime) Deliveries() <-chan model.Notification {
	return r.deliveries
}

// deliver hands n to whichever front end reads Deliveries. It never
// blocks the scheduler.
func (r *Runtime) deliver(n model.Notification) {
	select {
	case r.deliveries <- n:
	default:
		r.Logger.Warn("Delivery backlog full, notification not presented",
			zap.String("local_id", n.LocalID),
			zap.String("title", n.Title),
		)
	}
}
