package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/remote"
	"github.com/nhle/remindme/internal/ui/account"
)

const (
	// actionTimeout bounds a single remote action started from the UI.
	actionTimeout = 30 * time.Second

	// refreshInterval is how often the pending list is reloaded.
	refreshInterval = 2 * time.Second

	// bannerDuration is how long a delivered notification stays on screen.
	bannerDuration = 15 * time.Second
)

// deliveryMsg carries a notification the scheduler just delivered.
type deliveryMsg struct {
	notification model.Notification
}

// bannerExpiredMsg clears the banner it was scheduled for.
type bannerExpiredMsg struct {
	seq int
}

// refreshTickMsg triggers a periodic reload of the pending list.
type refreshTickMsg struct{}

// actionResultMsg reports the outcome of a user action in the status bar.
type actionResultMsg struct {
	text         string
	err          error
	reloadRemote bool
}

// waitForDelivery blocks until the scheduler delivers a notification.
func waitForDelivery(ch <-chan model.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return deliveryMsg{notification: n}
	}
}

func expireBanner(seq int) tea.Cmd {
	return tea.Tick(bannerDuration, func(time.Time) tea.Msg {
		return bannerExpiredMsg{seq: seq}
	})
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// runAction runs fn with a timeout and reports its outcome.
func runAction(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		text, err := fn(ctx)
		return actionResultMsg{text: text, err: err}
	}
}

// addNotification stores a drafted notification.
func (m *Model) addNotification(d model.Draft) tea.Cmd {
	rt := m.rt
	return runAction(func(ctx context.Context) (string, error) {
		n, err := rt.AddNotification(ctx, d)
		if err != nil {
			return "", err
		}
		if n.IsRemote() {
			return fmt.Sprintf("Added %q (web #%d)", n.Title, n.RemoteID), nil
		}
		return fmt.Sprintf("Added %q", n.Title), nil
	})
}

// deleteRemote deletes remote notifications and refreshes the remote view.
func (m *Model) deleteRemote(ids []int64) tea.Cmd {
	rt := m.rt
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		if err := rt.DeleteRemote(ctx, ids); err != nil {
			return actionResultMsg{err: err}
		}
		return actionResultMsg{
			text:         fmt.Sprintf("Deleted remote notifications %v", ids),
			reloadRemote: true,
		}
	}
}

// checkAdmin reports the cached administrator status.
func (m *Model) checkAdmin() tea.Cmd {
	rt := m.rt
	return runAction(func(ctx context.Context) (string, error) {
		admin, err := rt.AdminStatus(ctx)
		if err != nil {
			return "", err
		}
		if admin {
			return fmt.Sprintf("%s is an administrator", rt.Client.Username()), nil
		}
		return fmt.Sprintf("%s is a regular user", rt.Client.Username()), nil
	})
}

// deleteUsers removes accounts on behalf of an administrator.
func (m *Model) deleteUsers(names []string) tea.Cmd {
	rt := m.rt
	return runAction(func(ctx context.Context) (string, error) {
		if err := rt.DeleteUsers(ctx, names); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted users %s", strings.Join(names, ", ")), nil
	})
}

// accountResult turns a finished account form into a status message.
func accountResult(msg account.DoneMsg) actionResultMsg {
	switch {
	case errors.Is(msg.Err, context.Canceled):
		return actionResultMsg{}
	case msg.Err != nil:
		return actionResultMsg{err: msg.Err}
	case msg.Purpose == account.PurposeAddUser:
		return actionResultMsg{text: fmt.Sprintf("User %s saved", msg.Username)}
	default:
		return actionResultMsg{text: fmt.Sprintf("Logged in as %s", msg.Username)}
	}
}

// describeError shortens an error for the one-line status bar.
func describeError(err error) string {
	switch {
	case errors.Is(err, remote.ErrUnauthorized):
		return "the service rejected your credentials, press l to log in again"
	case errors.Is(err, remote.ErrUnavailable):
		return "the service is unreachable: " + err.Error()
	default:
		return err.Error()
	}
}
