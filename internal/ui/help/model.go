package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/remindme/internal/keys"
	"github.com/nhle/remindme/internal/theme"
	"github.com/nhle/remindme/internal/ui/command"
)

// Model is the help overlay: key bindings, palette commands and the
// meaning of the origin badges.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	h.Width = width - 4
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Update is a no-op; the root model closes the overlay.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	section := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginTop(1)

	var cmds strings.Builder
	for _, c := range command.Commands {
		fmt.Fprintf(&cmds, "%-14s %s\n", c.Name, theme.DimmedStyle.Render(c.Usage))
	}

	legend := lipgloss.JoinVertical(lipgloss.Left,
		theme.OriginBadgeStyle(false).Render("LOC")+" exists only on this machine",
		theme.OriginBadgeStyle(true).Render("WEB #id")+" synced with the service, removed there once it fires",
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		section.UnsetMarginTop().Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		section.Render("Commands (press :)"),
		strings.TrimRight(cmds.String(), "\n"),
		section.Render("Origins"),
		legend,
	)

	return theme.PanelStyle.
		Width(max(m.width-4, 10)).
		MaxHeight(m.height).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
