package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/metrics"
	"github.com/nhle/remindme/internal/remote"
)

// privilegeState is the tri-state memo held by PrivilegeCache.
type privilegeState int

const (
	privilegeUnknown privilegeState = iota
	privilegeGranted
	privilegeDenied
)

// AdminStatusFetcher answers whether the authenticated user is an administrator.
type AdminStatusFetcher interface {
	FetchAdminStatus(ctx context.Context) (bool, error)
}

// PrivilegeCache memoizes the remote admin-status lookup. The first IsAdmin
// call queries the service; every later call reuses the answer until Reset.
// Any failure is cached as "not an admin".
type PrivilegeCache struct {
	fetcher AdminStatusFetcher
	logger  *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	state privilegeState
}

// NewPrivilegeCache returns a cache in the unknown state.
func NewPrivilegeCache(fetcher AdminStatusFetcher, timeout time.Duration, logger *zap.Logger) *PrivilegeCache {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PrivilegeCache{
		fetcher: fetcher,
		logger:  logger,
		timeout: timeout,
	}
}

// IsAdmin returns the cached privilege, querying the service once if unknown.
func (c *PrivilegeCache) IsAdmin(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case privilegeGranted:
		return true
	case privilegeDenied:
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	admin, err := c.fetcher.FetchAdminStatus(ctx)
	metrics.RecordRemoteCall("admin_status", remote.Classify(err), time.Since(start))
	if err != nil {
		c.state = privilegeDenied
		c.logger.Warn("Admin status unavailable, continuing without privileged deletion",
			zap.String("reason", remote.Classify(err)),
			zap.Error(err),
		)
		return false
	}

	if admin {
		c.state = privilegeGranted
	} else {
		c.state = privilegeDenied
	}
	c.logger.Debug("Admin status resolved", zap.Bool("admin", admin))
	return admin
}

// Pin fixes the cached value without querying, e.g. after an auth failure.
func (c *PrivilegeCache) Pin(admin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if admin {
		c.state = privilegeGranted
	} else {
		c.state = privilegeDenied
	}
}

// Reset forgets the cached value. Call it after re-authentication.
func (c *PrivilegeCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = privilegeUnknown
}

// Known reports whether a value is cached.
func (c *PrivilegeCache) Known() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != privilegeUnknown
}
