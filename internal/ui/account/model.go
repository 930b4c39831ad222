package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/remindme/internal/theme"
)

// requestTimeout bounds a single account request.
const requestTimeout = 30 * time.Second

// Purpose selects what the form does with the entered credentials.
type Purpose int

const (
	PurposeLogin    Purpose = iota // Validate and store own credentials
	PurposeRegister                // Create own account, then log in
	PurposeAddUser                 // Administrator creates or updates another account
)

func (p Purpose) String() string {
	switch p {
	case PurposeRegister:
		return "Register"
	case PurposeAddUser:
		return "Add User"
	default:
		return "Log In"
	}
}

// Mode represents the current state of the account view.
type Mode int

const (
	ModeForm    Mode = iota // Entering credentials
	ModeWorking             // Waiting for the service
	ModeResult              // Showing the outcome
)

// Accounts performs the remote account operations behind the form.
type Accounts interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
	AddUser(ctx context.Context, username, password string, admin bool) error
}

// DoneMsg signals the account view should close. Err is nil when the
// operation succeeded.
type DoneMsg struct {
	Purpose  Purpose
	Username string
	Err      error
}

// resultMsg carries the outcome of a request back to the view.
type resultMsg struct {
	username string
	err      error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	username string
	password string
	admin    bool
}

// Model is the Bubble Tea model for login, registration and user
// management.
type Model struct {
	mode     Mode
	purpose  Purpose
	accounts Accounts
	form     *huh.Form
	fb       *formBindings
	spinner  spinner.Model

	username string
	err      error

	width, height int
}

// New creates a new account view model.
func New(accounts Accounts, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		accounts: accounts,
		fb:       &formBindings{},
		spinner:  sp,
		width:    width,
		height:   height,
	}
}

// Start shows a fresh form for purpose. username pre-fills the username
// field; passwords are never pre-filled.
func (m *Model) Start(purpose Purpose, username string) tea.Cmd {
	m.mode = ModeForm
	m.purpose = purpose
	m.err = nil
	m.fb.username = username
	m.fb.password = ""
	m.fb.admin = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Mode returns the current mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.mode = ModeResult
		m.username = msg.username
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeWorking {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeWorking:
			return m, nil
		case ModeResult:
			return m.handleResultKeys(msg)
		}
	}

	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode != ModeForm {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.mode = ModeWorking
		return m, tea.Batch(m.spinner.Tick, m.submit())
	case huh.StateAborted:
		purpose := m.purpose
		return m, func() tea.Msg {
			return DoneMsg{Purpose: purpose, Err: context.Canceled}
		}
	}
	return m, cmd
}

// handleResultKeys processes key events on the result screen.
func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		done := DoneMsg{Purpose: m.purpose, Username: m.username, Err: m.err}
		return m, func() tea.Msg { return done }
	case "r":
		if m.err != nil {
			return m, m.Start(m.purpose, m.fb.username)
		}
	}
	return m, nil
}

// submit runs the request for the current purpose.
func (m Model) submit() tea.Cmd {
	accounts := m.accounts
	purpose := m.purpose
	username := strings.TrimSpace(m.fb.username)
	password := m.fb.password
	admin := m.fb.admin

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var err error
		switch purpose {
		case PurposeRegister:
			err = accounts.Register(ctx, username, password)
		case PurposeAddUser:
			err = accounts.AddUser(ctx, username, password, admin)
		default:
			err = accounts.Login(ctx, username, password)
		}
		return resultMsg{username: username, err: err}
	}
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Username").
			Value(&m.fb.username).
			Validate(validateRequired("Username")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password).
			Validate(validateRequired("Password")),
	}
	if m.purpose == PurposeAddUser {
		fields = append(fields,
			huh.NewConfirm().
				Title("Administrator?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.admin),
		)
	}

	return huh.NewForm(huh.NewGroup(fields...)).WithWidth(m.formWidth())
}

// View renders the account view.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	title := titleStyle.Render(m.purpose.String())

	switch m.mode {
	case ModeWorking:
		return style.Render(title + "\n" + fmt.Sprintf("%s Contacting the service...", m.spinner.View()))

	case ModeResult:
		return style.Render(title + "\n" + m.viewResult())

	default:
		if m.form == nil {
			return ""
		}
		return style.Render(title + "\n" + m.form.View())
	}
}

func (m Model) viewResult() string {
	hint := lipgloss.NewStyle().Foreground(theme.ColorGray)

	if m.err != nil {
		return theme.ErrorStyle.Render("Request failed") + "\n\n" +
			m.err.Error() + "\n\n" +
			hint.Render("r retry | enter/esc back")
	}

	okStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorGreen)

	var text string
	switch m.purpose {
	case PurposeAddUser:
		text = fmt.Sprintf("User %s created or updated", m.username)
	case PurposeRegister:
		text = fmt.Sprintf("Registered and logged in as %s", m.username)
	default:
		text = fmt.Sprintf("Logged in as %s", m.username)
	}
	return okStyle.Render(text) + "\n\n" + hint.Render("enter/esc back")
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
