package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/remindme/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Commands lists the palette commands with a short usage line. They are
// offered as tab completions.
var Commands = []struct {
	Name  string
	Usage string
}{
	{"add", "create a notification"},
	{"sync", "sync with the service now"},
	{"remote", "show remote notifications"},
	{"delete", "delete <id,id,...> remote notifications"},
	{"login", "log in to the service"},
	{"register", "create an account"},
	{"admin", "check administrator status"},
	{"user add", "create or update a user (admin)"},
	{"users delete", "users delete <name,name,...> (admin)"},
	{"quit", "exit"},
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.Focus()
	ti.Width = width - 6

	suggestions := make([]string, len(Commands))
	for i, c := range Commands {
		suggestions[i] = c.Name
	}
	ti.SetSuggestions(suggestions)

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			cmd := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if cmd != "" {
				return m, func() tea.Msg {
					return CommandMsg(cmd)
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	var usage strings.Builder
	for _, c := range Commands {
		usage.WriteString(theme.HelpStyle.Render(padRight(c.Name, 14) + c.Usage))
		usage.WriteString("\n")
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, input, "", usage.String())

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Split separates a command line into its verb and argument. Two-word
// verbs from Commands are matched first, so "users delete a,b" yields
// ("users delete", "a,b").
func Split(line string) (verb, arg string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) >= 2 {
		pair := strings.ToLower(fields[0] + " " + fields[1])
		for _, c := range Commands {
			if c.Name == pair {
				return pair, strings.Join(fields[2:], " ")
			}
		}
	}
	return strings.ToLower(fields[0]), strings.Join(fields[1:], " ")
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s + " "
	}
	return s + strings.Repeat(" ", n-len(s))
}
