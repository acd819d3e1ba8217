package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/api"
	"github.com/nhle/workpresence/internal/notify"
	"github.com/nhle/workpresence/internal/presence"
	"github.com/nhle/workpresence/internal/push"
	"github.com/nhle/workpresence/internal/session"
	appsync "github.com/nhle/workpresence/internal/sync"
	"github.com/nhle/workpresence/internal/ui"
	"github.com/nhle/workpresence/internal/ui/breakform"
	"github.com/nhle/workpresence/internal/ui/command"
	"github.com/nhle/workpresence/internal/ui/dashboard"
	helpview "github.com/nhle/workpresence/internal/ui/help"
	"github.com/nhle/workpresence/internal/ui/notifications"
	"github.com/nhle/workpresence/internal/ui/reportform"
	"github.com/nhle/workpresence/internal/worker"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewBreakForm
	ViewReportForm
	ViewNotifications
	ViewHelp
	ViewCommand
)

// Deps are the collaborators the root model drives. Session, Push, Toasts
// and Inbox may be nil.
type Deps struct {
	Machine   *presence.Machine
	Feed      *notify.Store
	Poller    *appsync.Poller
	Session   *session.Session
	Push      *push.Manager
	Connected func() bool
	Toasts    <-chan worker.Notification
	Inbox     chan<- worker.Message
	UserID    string
	Role      string
	Tick      time.Duration
	Logger    *zap.Logger
}

// Model is the root Bubble Tea model that manages view routing, the
// elapsed timer and access to the presence machine.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *KeyMap
	machine      *presence.Machine
	feed         *notify.Store
	poller       *appsync.Poller
	push         *push.Manager
	connected    func() bool
	toasts       <-chan worker.Notification
	inbox        chan<- worker.Message
	unreadCh     chan struct{}
	logoutCh     chan struct{}
	tickEvery    time.Duration
	logger       *zap.Logger

	dashboard     dashboard.Model
	breakForm     breakform.Model
	reportForm    reportform.Model
	notifications notifications.Model
	helpView      helpview.Model
	commandView   command.Model

	ready      bool
	statusMsg  string
	errMessage string
}

// New creates the root application model.
func New(d Deps) Model {
	k := DefaultKeyMap()
	if d.Tick <= 0 {
		d.Tick = time.Second
	}
	if d.Connected == nil {
		d.Connected = func() bool { return false }
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	m := Model{
		currentView:   ViewDashboard,
		keys:          k,
		machine:       d.Machine,
		feed:          d.Feed,
		poller:        d.Poller,
		push:          d.Push,
		connected:     d.Connected,
		toasts:        d.Toasts,
		inbox:         d.Inbox,
		unreadCh:      make(chan struct{}, 1),
		logoutCh:      make(chan struct{}, 1),
		tickEvery:     d.Tick,
		logger:        d.Logger.Named("app"),
		dashboard:     dashboard.New(d.UserID, 80, 24),
		breakForm:     breakform.New(80, 24),
		reportForm:    reportform.New(d.Machine.UpdateDraft, 80, 24),
		notifications: notifications.New(k, 80, 24),
		helpView:      helpview.New(k, d.UserID, d.Role, 80, 24),
		commandView:   command.New(80, 24),
	}

	unread := m.unreadCh
	d.Feed.OnChange(func(int) {
		select {
		case unread <- struct{}{}:
		default:
		}
	})
	if d.Session != nil {
		logout := m.logoutCh
		d.Session.OnLogout(func() {
			select {
			case logout <- struct{}{}:
			default:
			}
		})
	}

	m.syncFromSources()
	return m
}

// Init starts the timer and the background listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.tick(),
		waitSignal(m.unreadCh, unreadChangedMsg{}),
		waitSignal(m.logoutCh, loggedOutMsg{}),
		waitToast(m.toasts),
	}
	if m.poller != nil {
		cmds = append(cmds, m.poller.WaitForNextResult())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.dashboard.SetSize(w, h)
		m.breakForm.SetSize(w, h)
		m.reportForm.SetSize(w, h)
		m.notifications.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case tickMsg:
		// Elapsed is recomputed from the punch-in time, never accumulated.
		m.syncFromSources()
		return m, m.tick()

	case appsync.PresenceSyncedMsg:
		if msg.AuthError != nil {
			m.errMessage = msg.AuthError.Message
		}
		m.syncFromSources()
		return m, m.poller.WaitForNextResult()

	case unreadChangedMsg:
		cmd := m.syncFeed()
		return m, tea.Batch(cmd, waitSignal(m.unreadCh, unreadChangedMsg{}))

	case loggedOutMsg:
		m.currentView = ViewDashboard
		m.errMessage = "signed out from another session"
		m.syncFromSources()
		return m, nil

	case toastMsg:
		m.statusMsg = msg.note.Title + ": " + msg.note.Body
		return m, waitToast(m.toasts)

	case actionResultMsg:
		m.report(msg.op, msg.err)
		m.syncFromSources()
		return m, nil

	case punchOutReadyMsg:
		if msg.err != nil {
			m.report("punch out", msg.err)
			return m, nil
		}
		m.errMessage = ""
		m.syncFromSources()
		m.currentView = ViewReportForm
		return m, m.reportForm.Start(msg.draft, "")

	case submitResultMsg:
		m.syncFromSources()
		if msg.err != nil {
			// Stay on the report with the typed text preserved.
			m.report("submit report", msg.err)
			if snap := m.machine.Snapshot(); snap.Draft != nil {
				m.currentView = ViewReportForm
				return m, m.reportForm.Start(*snap.Draft, describe(msg.err))
			}
			m.currentView = ViewDashboard
			return m, nil
		}
		m.currentView = ViewDashboard
		m.statusMsg = "report submitted, punched out"
		m.errMessage = ""
		return m, nil

	case breakform.BreakReasonMsg:
		m.currentView = ViewDashboard
		return m, m.breakIn(msg.Reason)

	case breakform.BreakFormCancelMsg:
		m.currentView = ViewDashboard
		return m, nil

	case reportform.ReportSubmitMsg:
		m.statusMsg = "submitting report..."
		return m, m.submitReport(msg.Draft)

	case reportform.ReportCancelMsg:
		m.currentView = ViewDashboard
		if err := m.machine.CancelReport(); err != nil {
			m.report("cancel report", err)
		}
		m.syncFromSources()
		return m, nil

	case notifications.MarkReadMsg:
		m.openItem(msg.Index)
		return m, m.markRead(msg.Index)

	case notifications.MarkAllReadMsg:
		return m, m.markAllRead()

	case notifications.CloseMsg:
		m.currentView = ViewDashboard
		return m, nil

	case feedUpdatedMsg:
		if msg.err != nil {
			m.errMessage = msg.err.Error()
		}
		return m, m.syncFeed()

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stop()
			return m, tea.Quit
		}
		if m.currentView == ViewDashboard {
			if next, cmd, ok := m.handleDashboardKeys(msg); ok {
				return next, cmd
			}
		}
		switch msg.String() {
		case "?":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView == ViewDashboard || m.currentView == ViewNotifications {
				m.previousView = m.currentView
				m.currentView = ViewHelp
				return m, nil
			}
		case "esc":
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleDashboardKeys maps the presence keys. ok is false for keys the
// dashboard does not own.
func (m Model) handleDashboardKeys(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stop()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.PunchIn):
		m.clearMessages()
		return m, m.punchIn(), true

	case key.Matches(msg, m.keys.BreakIn):
		m.clearMessages()
		// The reason form only opens when a break can actually start.
		if m.machine.State() != presence.StatePunchedIn {
			return m, m.breakIn(""), true
		}
		m.currentView = ViewBreakForm
		return m, m.breakForm.Start(), true

	case key.Matches(msg, m.keys.BreakOut):
		m.clearMessages()
		return m, m.breakOut(), true

	case key.Matches(msg, m.keys.PunchOut):
		m.clearMessages()
		if snap := m.machine.Snapshot(); snap.Draft != nil {
			m.currentView = ViewReportForm
			return m, m.reportForm.Start(*snap.Draft, ""), true
		}
		return m, m.punchOut(), true

	case key.Matches(msg, m.keys.Notifications):
		m.previousView = m.currentView
		m.currentView = ViewNotifications
		return m, m.syncFeed(), true

	case key.Matches(msg, m.keys.Refresh):
		m.poller.Trigger()
		return m, nil, true

	case msg.String() == ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewBreakForm:
		m.breakForm, cmd = m.breakForm.Update(msg)
	case ViewReportForm:
		m.reportForm, cmd = m.reportForm.Update(msg)
	case ViewNotifications:
		m.notifications, cmd = m.notifications.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(ui.Header{
		Title:      "Work Presence",
		Connection: m.connectionStatus(),
		Unread:     m.feed.UnreadCount(),
	})
	content := m.renderContent()

	state := m.machine.State()
	status := ui.Status{State: state.String(), Hints: m.keyHints(), Message: m.errMessage}
	if state.PunchOpen() {
		status.Elapsed = m.machine.ElapsedString()
	}
	statusBar := m.layout.RenderStatusBar(status)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDashboard:
		return m.dashboard.View()
	case ViewBreakForm:
		return m.breakForm.View()
	case ViewReportForm:
		return m.reportForm.View()
	case ViewNotifications:
		return m.notifications.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) connectionStatus() string {
	if m.poller != nil && m.poller.Status().State == appsync.SyncRunning {
		return "syncing"
	}
	if m.connected() {
		return "live"
	}
	return "offline"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewBreakForm:
		return "enter start break | esc cancel"
	case ViewReportForm:
		return "enter next / submit | esc discard report"
	case ViewNotifications:
		return "enter mark read | A mark all | esc back"
	default:
		if m.statusMsg != "" {
			return m.statusMsg
		}
		return "i punch in | b break | B break out | o punch out | n notifications | : command | q quit"
	}
}

// report records the outcome of op for the status bar. Refused and rejected
// transitions show their message verbatim.
func (m *Model) report(op string, err error) {
	if err == nil {
		m.errMessage = ""
		m.statusMsg = op + " ok"
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		m.errMessage = op + ": timed out"
		return
	}
	m.logger.Debug("action failed", zap.String("op", op), zap.Error(err))
	m.errMessage = describe(err)
}

// describe is the user-facing text of err. Server rejections show only the
// server's message; a partial failure keeps the step it failed on.
func describe(err error) string {
	if presence.IsPartialFailure(err) {
		return err.Error()
	}
	return api.Message(err)
}

func (m *Model) clearMessages() {
	m.errMessage = ""
	m.statusMsg = ""
}

// syncFromSources pulls fresh presence and feed state into the views.
func (m *Model) syncFromSources() {
	m.dashboard.SetSnapshot(m.machine.Snapshot())
	m.dashboard.SetElapsed(m.machine.ElapsedString())
	m.dashboard.SetUnread(m.feed.UnreadCount())
	m.dashboard.SetConnected(m.connected())
	if m.push != nil {
		m.helpView.SetPush(m.push.IsSubscribed())
	}
}

func (m *Model) syncFeed() tea.Cmd {
	m.dashboard.SetUnread(m.feed.UnreadCount())
	return m.notifications.SetItems(m.feed.Items(), m.feed.UnreadCount())
}

func (m *Model) stop() {
	if m.poller != nil {
		m.poller.Stop()
	}
}

// executeCommand handles a command string from the command palette.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	m.clearMessages()
	switch cmd {
	case command.CmdPunchIn:
		return m, m.punchIn()
	case command.CmdBreakIn:
		if m.machine.State() != presence.StatePunchedIn {
			return m, m.breakIn("")
		}
		m.currentView = ViewBreakForm
		return m, m.breakForm.Start()
	case command.CmdBreakOut:
		return m, m.breakOut()
	case command.CmdPunchOut:
		return m, m.punchOut()
	case command.CmdRefresh:
		return m, m.refresh()
	case command.CmdNotifications:
		m.currentView = ViewNotifications
		return m, m.syncFeed()
	case command.CmdReadAll:
		return m, m.markAllRead()
	case command.CmdUnsubscribe:
		return m, m.unsubscribePush()
	case command.CmdQuit, "q":
		m.stop()
		return m, tea.Quit
	default:
		m.errMessage = "unknown command: " + cmd
		return m, nil
	}
}
