package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/remindme/internal/remote"
)

func TestPrivilegeCacheQueriesOnce(t *testing.T) {
	fake := newFakeRemote()
	fake.admin = true
	cache := NewPrivilegeCache(fake, time.Second, zap.NewNop())

	for i := 0; i < 5; i++ {
		assert.True(t, cache.IsAdmin(context.Background()))
	}
	assert.Equal(t, 1, fake.adminCalls)
}

func TestPrivilegeCacheFailsClosed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fake := newFakeRemote()
	fake.admin = true
	fake.adminErr = remote.ErrUnavailable
	cache := NewPrivilegeCache(fake, time.Second, zap.New(core))

	assert.False(t, cache.IsAdmin(context.Background()))
	assert.False(t, cache.IsAdmin(context.Background()))
	assert.Equal(t, 1, fake.adminCalls)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Admin status unavailable").Len())
}

func TestPrivilegeCacheResetRequeries(t *testing.T) {
	fake := newFakeRemote()
	cache := NewPrivilegeCache(fake, time.Second, zap.NewNop())

	assert.False(t, cache.IsAdmin(context.Background()))
	fake.admin = true
	assert.False(t, cache.IsAdmin(context.Background()))

	cache.Reset()
	assert.False(t, cache.Known())
	assert.True(t, cache.IsAdmin(context.Background()))
	assert.Equal(t, 2, fake.adminCalls)
}

func TestPrivilegeCachePinSkipsLookup(t *testing.T) {
	fake := newFakeRemote()
	fake.admin = true
	cache := NewPrivilegeCache(fake, time.Second, zap.NewNop())

	cache.Pin(false)
	assert.True(t, cache.Known())
	assert.False(t, cache.IsAdmin(context.Background()))
	assert.Zero(t, fake.adminCalls)
}
