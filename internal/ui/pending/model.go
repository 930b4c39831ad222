package pending

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/remindme/internal/keys"
	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/theme"
)

// loadTimeout bounds a single Loader call.
const loadTimeout = 15 * time.Second

// Loader fetches the notifications a list shows.
type Loader func(ctx context.Context) ([]model.Notification, error)

// LoadedMsg is sent when a list's Loader returns. List names the
// receiving list so several lists can share one program.
type LoadedMsg struct {
	List  string
	Items []model.Notification
	Err   error
}

// DeleteRequestMsg asks the application to delete a remote notification.
type DeleteRequestMsg struct {
	RemoteID int64
	Title    string
}

// Model is a list of notifications, used for both the pending queue and
// the remote service's view.
type Model struct {
	name   string
	empty  string
	list   list.Model
	load   Loader
	keys   *keys.KeyMap
	err    error
	width  int
	height int
}

// New creates a list named name that fills itself with load. empty is
// shown when the list has no items.
func New(name, title, empty string, load Loader, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{now: time.Now}, width, height-2)
	l.Title = title
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	// Quitting is the root model's decision.
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		name:   name,
		empty:  empty,
		list:   l,
		load:   load,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns a command that loads the initial items.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.List != m.name {
			return m, nil
		}
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		items := make([]list.Item, len(msg.Items))
		for i, n := range msg.Items {
			items[i] = Item{Notification: n}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Delete) {
			n, ok := m.Selected()
			if !ok || !n.IsRemote() {
				return m, nil
			}
			return m, func() tea.Msg {
				return DeleteRequestMsg{RemoteID: n.RemoteID, Title: n.Title}
			}
		}
	}

	// Delegate to list model for navigation keys
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list view.
func (m Model) View() string {
	if m.err != nil {
		return m.centered().
			Foreground(theme.ColorRed).
			Render("Could not load notifications:\n" + m.err.Error())
	}

	if len(m.list.Items()) == 0 {
		return m.centered().
			Foreground(theme.ColorGray).
			Render(m.empty)
	}

	return m.list.View()
}

func (m Model) centered() lipgloss.Style {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center)
}

// Load returns a tea.Cmd that runs the loader.
func (m Model) Load() tea.Cmd {
	name := m.name
	load := m.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		items, err := load(ctx)
		return LoadedMsg{List: name, Items: items, Err: err}
	}
}

// Selected returns the focused notification, if any.
func (m Model) Selected() (model.Notification, bool) {
	item, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return item.Notification, true
}

// Len returns the number of loaded notifications.
func (m Model) Len() int {
	return len(m.list.Items())
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
