package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/remindme/internal/keys"
	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/theme"
	"github.com/nhle/remindme/internal/ui/pending"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Model shows every field of one notification.
type Model struct {
	notification *model.Notification
	viewport     viewport.Model
	keys         *keys.KeyMap
	now          func() time.Time
	width        int
	height       int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Delete):
			n := m.notification
			if n == nil || !n.IsRemote() {
				return m, nil
			}
			return m, func() tea.Msg {
				return pending.DeleteRequestMsg{RemoteID: n.RemoteID, Title: n.Title}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.notification == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	n := m.notification
	if n == nil {
		return ""
	}

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	badge := "LOCAL"
	if n.IsRemote() {
		badge = fmt.Sprintf("WEB #%d", n.RemoteID)
	}
	when := pending.Countdown(n.FireAt, m.now())
	whenStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	if when == "due" {
		whenStyle = theme.OverdueStyle
	}
	sections = append(sections, lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.OriginBadgeStyle(n.IsRemote()).Render(badge),
		"  ",
		whenStyle.Render(when),
	))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) string {
		return fmt.Sprintf("%-10s %s", metaStyle.Render(label), valStyle.Render(value))
	}

	sections = append(sections, row("Fires:", n.FireAt.Local().Format("2006-01-02 15:04:05")))
	if n.LocalID != "" {
		sections = append(sections, row("Local ID:", n.LocalID))
	}
	if n.IsRemote() {
		sections = append(sections, row("Web ID:", fmt.Sprintf("%d", n.RemoteID)))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	body := n.Payload
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No payload")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification updates the notification being displayed.
func (m *Model) SetNotification(n model.Notification) {
	m.notification = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.notification != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
