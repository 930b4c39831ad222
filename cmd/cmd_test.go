package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/remindme/internal/app"
	"github.com/nhle/remindme/internal/model"
)

// writeConfig creates a config file keeping every file under a temporary
// directory.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "store:\n  path: " + filepath.Join(dir, "remindme.db") + "\n" +
		"log:\n  level: error\n" +
		"remote:\n  base_url: http://127.0.0.1:1\n  timeout_sec: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(BuildArgs{Version: "test"})
	a.Writer = &out
	a.ErrWriter = &out
	err := a.Run(append([]string{"remindme", "--config", cfgPath}, args...))
	return out.String(), err
}

func TestAddThenList(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "add", "--title", "water the plants", "--payload", "balcony", "--delay", "120")
	require.NoError(t, err)
	assert.Contains(t, out, `scheduled "water the plants"`)

	out, err = run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "LOC")
	assert.Contains(t, out, "water the plants (balcony)")
}

func TestListEmpty(t *testing.T) {
	out, err := run(t, writeConfig(t), "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing scheduled")
}

func TestAddValidation(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, cfg, "add", "--title", "late", "--delay", "-5")
	assert.Error(t, err)

	_, err = run(t, cfg, "add", "--delay", "5")
	assert.Error(t, err, "title is required")

	_, err = run(t, cfg, "add", "--title", "upload me", "--upload")
	assert.ErrorIs(t, err, app.ErrNotLoggedIn)
}

func TestRemoteCommandsRequireLogin(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, cfg, "remote", "list")
	assert.ErrorIs(t, err, app.ErrNotLoggedIn)

	_, err = run(t, cfg, "remote", "delete", "4")
	assert.ErrorIs(t, err, app.ErrNotLoggedIn)
}

func TestRemoteDeleteRejectsInvalidIDs(t *testing.T) {
	_, err := run(t, writeConfig(t), "remote", "delete", "4,abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abc")
}

func TestCredentialsPromptOnlyForMissing(t *testing.T) {
	var asked []string
	promptFunc = func(username, password *string) error {
		if *username == "" {
			asked = append(asked, "username")
			*username = "ann"
		}
		if *password == "" {
			asked = append(asked, "password")
			*password = "secret"
		}
		return nil
	}
	t.Cleanup(func() { promptFunc = promptCredentials })

	// The service is unreachable so login fails after the prompt.
	_, err := run(t, writeConfig(t), "login", "--username", "ann")
	assert.Error(t, err)
	assert.Equal(t, []string{"password"}, asked)
}

func TestPrintDeliveries(t *testing.T) {
	ch := make(chan model.Notification, 2)
	ch <- model.Notification{Title: "stretch", Payload: "two minutes"}
	ch <- model.Notification{Title: "tea"}

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- printDeliveries(ctx, &out, ch) }()

	require.Eventually(t, func() bool { return len(ch) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, out.String(), "stretch: two minutes")
	assert.Contains(t, out.String(), "tea")
}

func TestPrintNotifications(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.Local)
	var out bytes.Buffer
	printNotifications(&out, []model.Notification{
		{RemoteID: 12, Title: "call mom", FireAt: now.Add(90 * time.Second)},
		{Title: "overdue", FireAt: now.Add(-time.Minute)},
	}, now)

	assert.Contains(t, out.String(), "WEB #12")
	assert.Contains(t, out.String(), "+1m30s")
	assert.Contains(t, out.String(), "due")
}
