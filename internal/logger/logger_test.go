package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/model"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "remindme.log")

	l, err := New(model.LogConfig{Level: "debug", Encoding: "json", File: path})
	require.NoError(t, err)

	l.Info("notification delivered", zap.String("title", "tea"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"notification delivered"`)
	assert.Contains(t, string(data), `"title":"tea"`)
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remindme.log")

	l, err := New(model.LogConfig{Level: "warn", Encoding: "console", File: path})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(model.LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = New(model.LogConfig{Level: "info", Encoding: "xml"})
	assert.Error(t, err)
}
