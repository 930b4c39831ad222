package pending

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the payload.
func (i Item) Description() string { return i.Notification.Payload }

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification

	badge := theme.OriginBadgeStyle(n.IsRemote()).Render(originLabel(n))

	when := Countdown(n.FireAt, d.now())
	var whenRendered string
	if !n.FireAt.After(d.now()) {
		whenRendered = theme.OverdueStyle.Render(when)
	} else {
		whenRendered = lipgloss.NewStyle().Foreground(theme.ColorGray).Render(when)
	}

	payload := ""
	if n.Payload != "" {
		payload = theme.DimmedStyle.Render(" · " + n.Payload)
	}

	line := fmt.Sprintf("%s %s  %s%s", badge, n.Title, whenRendered, payload)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// originLabel names where a notification came from.
func originLabel(n model.Notification) string {
	if n.IsRemote() {
		return fmt.Sprintf("WEB #%d", n.RemoteID)
	}
	return "LOC"
}

// Countdown returns a short human-friendly distance to fireAt.
func Countdown(fireAt, now time.Time) string {
	if fireAt.IsZero() {
		return ""
	}

	d := fireAt.Sub(now)
	switch {
	case d <= 0:
		return "due"
	case d < time.Minute:
		return fmt.Sprintf("in %ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		mins := int(d.Minutes()) - hrs*60
		if mins == 0 {
			return fmt.Sprintf("in %dh", hrs)
		}
		return fmt.Sprintf("in %dh%02dm", hrs, mins)
	default:
		return fireAt.Local().Format("on Jan 02 15:04")
	}
}
