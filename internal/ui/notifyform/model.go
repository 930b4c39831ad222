package notifyform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/remindme/internal/model"
	"github.com/nhle/remindme/internal/theme"
)

// SubmittedMsg is dispatched when the user completes the form.
type SubmittedMsg struct {
	Draft model.Draft
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title   string
	payload string
	delay   string
	upload  bool
}

// Model is the Bubble Tea model for the new-notification form.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	canUpload bool
	width     int
	height    int
}

// New creates a new notification form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets the fields and builds a fresh form. The upload question is
// only asked when canUpload is set, i.e. when credentials are configured.
func (m *Model) Start(canUpload bool) tea.Cmd {
	m.canUpload = canUpload
	m.fb.title = ""
	m.fb.payload = ""
	m.fb.delay = "60"
	m.fb.upload = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		draft := m.draft()
		m.form = nil
		return m, func() tea.Msg { return SubmittedMsg{Draft: draft} }
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Notification") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What should I remind you of?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Payload").
			Placeholder("Optional details...").
			Value(&m.fb.payload),
		huh.NewInput().
			Title("Delay").
			Description("Seconds from now").
			Value(&m.fb.delay).
			Validate(validateDelay),
	}
	if m.canUpload {
		fields = append(fields,
			huh.NewConfirm().
				Title("Send to web?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.upload),
		)
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) draft() model.Draft {
	secs, _ := parseDelay(m.fb.delay)
	return model.Draft{
		Title:   m.fb.title,
		Payload: m.fb.payload,
		Delay:   secs,
		Upload:  m.canUpload && m.fb.upload,
	}
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

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateDelay(s string) error {
	_, err := parseDelay(s)
	return err
}

// parseDelay reads a non-negative number of seconds.
func parseDelay(s string) (time.Duration, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("delay must be a whole number of seconds")
	}
	if secs < 0 {
		return 0, fmt.Errorf("delay must not be negative")
	}
	return time.Duration(secs) * time.Second, nil
}
