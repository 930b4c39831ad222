package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/remindme/internal/keys"
	"github.com/nhle/remindme/internal/model"
	appsync "github.com/nhle/remindme/internal/sync"
	"github.com/nhle/remindme/internal/theme"
	"github.com/nhle/remindme/internal/ui"
	"github.com/nhle/remindme/internal/ui/account"
	"github.com/nhle/remindme/internal/ui/command"
	"github.com/nhle/remindme/internal/ui/detail"
	helpview "github.com/nhle/remindme/internal/ui/help"
	"github.com/nhle/remindme/internal/ui/notifyform"
	"github.com/nhle/remindme/internal/ui/pending"
)

// List names used to route pending.LoadedMsg.
const (
	listPending = "pending"
	listRemote  = "remote"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewPending ViewState = iota
	ViewRemote
	ViewHelp
	ViewCommand
	ViewAdd
	ViewAccount
	ViewDetail
)

// Model is the root Bubble Tea model that manages view routing, layout,
// the delivery banner and access to the runtime.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	rt           *Runtime
	keys         *keys.KeyMap

	pendingList pending.Model
	remoteList  pending.Model
	helpView    helpview.Model
	commandView command.Model
	formView    notifyform.Model
	accountView account.Model
	detailView  detail.Model

	banner    *model.Notification
	bannerSeq int

	flash    string
	flashErr bool
	ready    bool
}

// New creates a new root application model around rt. The runtime's
// scheduler should already be started.
func New(rt *Runtime) Model {
	k := keys.DefaultKeyMap()

	return Model{
		currentView: ViewPending,
		rt:          rt,
		keys:        k,
		pendingList: pending.New(listPending, "Pending notifications",
			"Nothing scheduled.\n\nPress n to add a notification.",
			rt.ListPending, k, 80, 24),
		remoteList: pending.New(listRemote, "Remote notifications",
			"The service holds no notifications for you.",
			rt.ListRemote, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		formView:    notifyform.New(80, 24),
		accountView: account.New(rt, 80, 24),
		detailView:  detail.New(k, 80, 24),
	}
}

// Init loads the pending list and starts listening for deliveries.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.pendingList.Init(),
		waitForDelivery(m.rt.Deliveries()),
		refreshTick(),
	}
	if !m.rt.HasCredentials() {
		cmds = append(cmds, func() tea.Msg {
			return actionResultMsg{text: "Not logged in, only local notifications fire. Press l to log in."}
		})
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case deliveryMsg:
		n := msg.notification
		m.banner = &n
		m.bannerSeq++
		m.resize()
		return m, tea.Batch(
			waitForDelivery(m.rt.Deliveries()),
			expireBanner(m.bannerSeq),
			m.pendingList.Load(),
		)

	case bannerExpiredMsg:
		if msg.seq == m.bannerSeq {
			m.banner = nil
			m.resize()
		}
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.pendingList.Load(), refreshTick())

	case pending.LoadedMsg:
		var cmd tea.Cmd
		if msg.List == listRemote {
			m.remoteList, cmd = m.remoteList.Update(msg)
		} else {
			m.pendingList, cmd = m.pendingList.Update(msg)
		}
		return m, cmd

	case pending.DeleteRequestMsg:
		if m.currentView == ViewDetail {
			m.currentView = m.previousView
		}
		return m, m.deleteRemote([]int64{msg.RemoteID})

	case detail.BackMsg:
		m.currentView = m.previousView
		return m, nil

	case actionResultMsg:
		m.setFlash(msg)
		cmds := []tea.Cmd{m.pendingList.Load()}
		if msg.reloadRemote {
			cmds = append(cmds, m.remoteList.Load())
		}
		return m, tea.Batch(cmds...)

	case notifyform.SubmittedMsg:
		m.currentView = ViewPending
		return m, m.addNotification(msg.Draft)

	case notifyform.CancelMsg:
		m.currentView = ViewPending
		return m, nil

	case account.DoneMsg:
		m.currentView = ViewPending
		result := accountResult(msg)
		return m, func() tea.Msg { return result }

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if handled, next, cmd := m.handleGlobalKeys(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKeys processes shortcuts that only apply while a list, the
// help overlay or the command palette is shown; forms keep every key.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	onList := m.currentView == ViewPending || m.currentView == ViewRemote

	switch {
	case key.Matches(msg, m.keys.Help) && (onList || m.currentView == ViewHelp):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return true, m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return true, m, nil

	case key.Matches(msg, m.keys.Command) && (onList || m.currentView == ViewCommand):
		if m.currentView == ViewCommand {
			m.currentView = m.previousView
			return true, m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return true, m, m.commandView.Focus()

	case key.Matches(msg, m.keys.Back) && (m.currentView == ViewHelp || m.currentView == ViewCommand):
		m.currentView = m.previousView
		return true, m, nil
	}

	if !onList {
		return false, m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return true, m, tea.Quit

	case key.Matches(msg, m.keys.Back) && m.currentView == ViewRemote:
		m.currentView = ViewPending
		return true, m, nil

	case key.Matches(msg, m.keys.New):
		return true, m, m.openAddForm()

	case key.Matches(msg, m.keys.Open):
		selected := m.pendingList
		if m.currentView == ViewRemote {
			selected = m.remoteList
		}
		n, ok := selected.Selected()
		if !ok {
			return true, m, nil
		}
		m.detailView.SetNotification(n)
		m.previousView = m.currentView
		m.currentView = ViewDetail
		return true, m, nil

	case key.Matches(msg, m.keys.Login):
		return true, m, m.openAccount(account.PurposeLogin)

	case key.Matches(msg, m.keys.Sync):
		m.rt.RequestSync()
		m.setFlash(actionResultMsg{text: "Sync requested"})
		if m.currentView == ViewRemote {
			return true, m, m.remoteList.Load()
		}
		return true, m, nil

	case key.Matches(msg, m.keys.Remote):
		if m.currentView == ViewRemote {
			m.currentView = ViewPending
			return true, m, nil
		}
		m.currentView = ViewRemote
		return true, m, m.remoteList.Load()

	case key.Matches(msg, m.keys.Dismiss):
		m.banner = nil
		m.resize()
		return true, m, nil
	}

	return false, m, nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewPending:
		m.pendingList, cmd = m.pendingList.Update(msg)
	case ViewRemote:
		m.remoteList, cmd = m.remoteList.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewAdd:
		m.formView, cmd = m.formView.Update(msg)
	case ViewAccount:
		m.accountView, cmd = m.accountView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "remindme"
	if n := m.pendingList.Len(); n > 0 {
		title = fmt.Sprintf("remindme [%d pending]", n)
	}
	header := m.layout.RenderHeader(title, m.syncStatus())

	banner := ""
	if m.banner != nil {
		banner = m.layout.RenderBanner(m.banner.Title, m.banner.Payload)
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, banner, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewPending:
		return m.pendingList.View()
	case ViewRemote:
		return m.remoteList.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewAdd:
		return m.formView.View()
	case ViewAccount:
		return m.accountView.View()
	case ViewDetail:
		return m.detailView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the user and sync state.
func (m Model) syncStatus() string {
	user := m.rt.Client.Username()
	if user == "" {
		return "offline"
	}

	status := m.rt.Coordinator.Status()
	switch status.State {
	case appsync.SyncRunning:
		return user + " · syncing"
	case appsync.SyncError:
		return user + " · ⚠ sync failed"
	}
	if status.LastSync.IsZero() {
		return user
	}
	return fmt.Sprintf("%s · synced %s ago", user, time.Since(status.LastSync).Truncate(time.Second))
}

// keyHints returns the flash message or keyboard shortcut hints for the
// status bar.
func (m Model) keyHints() string {
	if m.flash != "" && (m.currentView == ViewPending || m.currentView == ViewRemote) {
		if m.flashErr {
			return theme.ErrorStyle.Render(m.flash)
		}
		return m.flash
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | tab complete | enter execute | esc back"
	case ViewAdd, ViewAccount:
		return "enter submit | esc cancel"
	case ViewDetail:
		return "j/k scroll | d delete remote | esc back"
	case ViewRemote:
		return "enter details | d delete | r sync | v/esc back | q quit"
	default:
		return "q quit | ? help | n new | enter details | l login | v remote | r sync | : command"
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(line string) tea.Cmd {
	verb, arg := command.Split(line)

	switch verb {
	case "sync", "refresh":
		m.rt.RequestSync()
		m.setFlash(actionResultMsg{text: "Sync requested"})
		return nil
	case "quit", "q", "exit":
		return tea.Quit
	case "add", "new", "an":
		return m.openAddForm()
	case "remote", "sn":
		m.currentView = ViewRemote
		return m.remoteList.Load()
	case "delete", "dn":
		ids, invalid := ParseIDs(arg)
		if len(invalid) > 0 || len(ids) == 0 {
			m.setFlash(actionResultMsg{err: fmt.Errorf("usage: delete <id,id,...> (invalid: %s)", strings.Join(invalid, ", "))})
			return nil
		}
		return m.deleteRemote(ids)
	case "login":
		return m.openAccount(account.PurposeLogin)
	case "register":
		return m.openAccount(account.PurposeRegister)
	case "admin":
		return m.checkAdmin()
	case "user add", "users add", "au":
		return m.openAccount(account.PurposeAddUser)
	case "users delete", "user delete", "du":
		names := ParseNames(arg)
		if len(names) == 0 {
			m.setFlash(actionResultMsg{err: fmt.Errorf("usage: users delete <name,name,...>")})
			return nil
		}
		return m.deleteUsers(names)
	case "help":
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil
	default:
		m.setFlash(actionResultMsg{err: fmt.Errorf("unknown command %q", line)})
		return nil
	}
}

func (m *Model) openAddForm() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewAdd
	return m.formView.Start(m.rt.HasCredentials())
}

func (m *Model) openAccount(purpose account.Purpose) tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewAccount
	username := ""
	if purpose != account.PurposeAddUser {
		username = m.rt.Client.Username()
	}
	return m.accountView.Start(purpose, username)
}

// setFlash shows an action outcome in the status bar. An empty result
// clears it.
func (m *Model) setFlash(msg actionResultMsg) {
	m.flashErr = msg.err != nil
	if msg.err != nil {
		m.flash = describeError(msg.err)
		return
	}
	m.flash = msg.text
}

// resize propagates the content area size, minus the banner, to every view.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	w := m.layout.ContentWidth()
	h := m.layout.ContentHeight()
	if m.banner != nil {
		h -= 4
	}
	if h < 3 {
		h = 3
	}

	m.pendingList.SetSize(w, h)
	m.remoteList.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.formView.SetSize(w, h)
	m.accountView.SetSize(w, h)
	m.detailView.SetSize(w, h)
}
