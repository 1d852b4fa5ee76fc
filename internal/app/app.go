package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/api"
	"github.com/nhle/medtracker/internal/clock"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/notify"
	"github.com/nhle/medtracker/internal/reminder"
	appsync "github.com/nhle/medtracker/internal/sync"
	"github.com/nhle/medtracker/internal/theme"
	"github.com/nhle/medtracker/internal/ui"
	"github.com/nhle/medtracker/internal/ui/command"
	"github.com/nhle/medtracker/internal/ui/doseform"
	helpview "github.com/nhle/medtracker/internal/ui/help"
	inboxview "github.com/nhle/medtracker/internal/ui/inbox"
	"github.com/nhle/medtracker/internal/ui/login"
	"github.com/nhle/medtracker/internal/ui/schedule"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewToday
	ViewInbox
	ViewHelp
	ViewDoseForm
	ViewCommand
)

func (v ViewState) String() string {
	switch v {
	case ViewLogin:
		return "sign in"
	case ViewToday:
		return "today"
	case ViewInbox:
		return "inbox"
	case ViewHelp:
		return "help"
	case ViewDoseForm:
		return "log dose"
	case ViewCommand:
		return "command"
	default:
		return ""
	}
}

// Poller is the reminder scheduler the app drives. *sync.Poller
// satisfies it.
type Poller interface {
	Start() tea.Cmd
	Stop()
	Refresh() error
	Status() appsync.Status
	WaitForNextResult() tea.Cmd
	Tracker() *reminder.Tracker
	Resolve(ctx context.Context, occ reminder.Occurrence, status model.DoseStatus, notes string) (model.DoseRecord, error)
	ResolveNotification(ctx context.Context, n model.Notification, status model.DoseStatus, notes string) (model.DoseRecord, error)
	Snooze(key reminder.Key, d time.Duration) (time.Time, error)
}

// Session is the API client as far as signing in is concerned.
// *api.Client satisfies it.
type Session interface {
	SetToken(token string)
	SetBaseURL(baseURL string)
	BaseURL() string
	Me(ctx context.Context) (*api.User, error)
}

// TokenStore keeps the API token between runs. *credential.Store
// satisfies it.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
}

// Deps are the collaborators of the root model.
type Deps struct {
	Config     *model.AppConfig
	ConfigPath string
	Clock      *clock.Clock
	Poller     Poller
	Session    Session
	Tokens     TokenStore
	Inbox      *notify.Inbox
	Logger     *zap.Logger
}

// requestTimeout bounds session checks and ledger writes started from the UI.
const requestTimeout = 30 * time.Second

// Model is the root Bubble Tea model that manages view routing, layout and
// the reminder session.
type Model struct {
	currentView  ViewState
	previousView ViewState
	frame        ui.Frame
	keys         *KeyMap
	ready        bool

	cfg        *model.AppConfig
	configPath string
	clock      *clock.Clock
	poller     Poller
	session    Session
	tokens     TokenStore
	inbox      *notify.Inbox
	logger     *zap.Logger

	loginView    login.Model
	todayView    schedule.Model
	inboxView    inboxview.Model
	helpView     helpview.Model
	doseFormView doseform.Model
	commandView  command.Model

	signedIn bool
	user     *api.User

	// waiting is true while a WaitForNextResult command is outstanding.
	waiting bool

	lastResult  *appsync.PollResultMsg
	unreadCount int
	statusMsg   string
	statusErr   bool
}

// New creates a new root application model.
func New(d Deps) Model {
	k := DefaultKeyMap()
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Config == nil {
		d.Config = model.DefaultAppConfig()
	}
	now := func() time.Time { return d.Clock.Now().Time }

	today := schedule.New(k, now, 80, 24)
	today.SetSnoozeLookup(d.Poller.Tracker().SnoozedUntil)
	today.SetAutoMiss(d.Config.Reminders.AutoMissAfter())

	return Model{
		currentView:  ViewLogin,
		keys:         k,
		cfg:          d.Config,
		configPath:   d.ConfigPath,
		clock:        d.Clock,
		poller:       d.Poller,
		session:      d.Session,
		tokens:       d.Tokens,
		inbox:        d.Inbox,
		logger:       d.Logger,
		loginView:    login.New(d.Session.BaseURL(), 80, 24),
		todayView:    today,
		inboxView:    inboxview.New(d.Inbox, k, now, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		doseFormView: doseform.New(80, 24),
		commandView:  command.New(80, 24),
		unreadCount:  d.Inbox.UnreadCount(),
	}
}

// Init restores a stored session when there is one and starts listening
// for inbox changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.restoreSession(),
		m.waitForInboxChange(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.frame = ui.NewFrame(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.frame.BodyWidth()
		contentHeight := m.frame.BodyHeight()
		m.loginView.SetSize(contentWidth, contentHeight)
		m.todayView.SetSize(contentWidth, contentHeight)
		m.inboxView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.doseFormView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case noStoredSessionMsg:
		m.currentView = ViewLogin
		cmd := m.loginView.Start("")
		return m, cmd

	case sessionStartedMsg:
		cmd := m.startSession(msg)
		return m, cmd

	case sessionFailedMsg:
		m.currentView = ViewLogin
		cmd := m.loginView.Start(msg.message)
		return m, cmd

	case login.SubmitMsg:
		cmd := m.signIn(msg)
		return m, cmd

	case login.CancelMsg:
		return m, tea.Quit

	case appsync.PollResultMsg:
		m.waiting = false
		cmd := m.handlePollResult(msg)
		return m, cmd

	case inboxChangedMsg:
		m.syncInbox()
		cmd := tea.Batch(m.inboxView.Reload(), m.waitForInboxChange())
		return m, cmd

	case schedule.ResolveRequestMsg:
		return m, m.resolveOccurrence(msg.Occurrence, msg.Status, "")

	case schedule.SnoozeRequestMsg:
		m.snooze(msg.Key, 0)
		return m, nil

	case schedule.LogDoseMsg:
		m.previousView = m.currentView
		m.currentView = ViewDoseForm
		cmd := m.doseFormView.Start(msg.Occurrence)
		return m, cmd

	case doseform.SubmitMsg:
		m.currentView = m.previousView
		return m, m.resolveOccurrence(msg.Occurrence, msg.Status, msg.Notes)

	case doseform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case inboxview.ResolveRequestMsg:
		return m, m.resolveNotification(msg.Notification, msg.Status)

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(msg)
		return m, cmd

	case command.ErrorMsg:
		m.currentView = m.previousView
		m.setError(msg.Err)
		return m, nil

	case doseResolvedMsg:
		cmd := m.handleResolved(msg)
		return m, cmd

	case tea.KeyMsg:
		next, cmd, handled := m.handleGlobalKeys(msg)
		if handled {
			return next, cmd
		}
		m = next
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKeys processes keys that work regardless of the active view.
// Forms receive every key except ctrl+c.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.poller.Stop()
		return m, tea.Quit, true
	}
	if m.currentView == ViewLogin || m.currentView == ViewDoseForm {
		return m, nil, false
	}
	if m.currentView == ViewCommand {
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	}

	m.statusMsg = ""
	m.statusErr = false

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.poller.Stop()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.helpView.SetContext(m.currentView.String())
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		if m.currentView == ViewHelp {
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		if m.currentView == ViewInbox {
			m.currentView = ViewToday
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Today):
		m.currentView = ViewToday
		return m, nil, true

	case key.Matches(msg, m.keys.Inbox):
		m.currentView = ViewInbox
		cmd := m.inboxView.Reload()
		return m, cmd, true

	case key.Matches(msg, m.keys.Refresh):
		if err := m.poller.Refresh(); err != nil {
			m.setError(err)
		} else {
			m.setStatus("Refreshing...")
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Logout):
		cmd := m.signOut()
		return m, cmd, true
	}

	return m, nil, false
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	switch c.Name {
	case command.Refresh:
		if err := m.poller.Refresh(); err != nil {
			m.setError(err)
		}
	case command.Today:
		m.currentView = ViewToday
	case command.Inbox:
		m.currentView = ViewInbox
		return m.inboxView.Reload()
	case command.Snooze:
		it, ok := m.todayView.Selected()
		if !ok || !it.Actionable() {
			m.setErrorText("Select an open dose on the today view to snooze it")
			return nil
		}
		m.snooze(it.Occurrence.Key, time.Duration(c.Minutes)*time.Minute)
	case command.ReadAll:
		m.inbox.MarkAllRead()
	case command.ClearAll:
		m.inbox.ClearAll()
	case command.Logout:
		return m.signOut()
	case command.Quit:
		m.poller.Stop()
		return tea.Quit
	}
	return nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewToday:
		m.todayView, cmd = m.todayView.Update(msg)
	case ViewInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewDoseForm:
		m.doseFormView, cmd = m.doseFormView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// handlePollResult applies one evaluation pass to the views and asks for
// the next result.
func (m *Model) handlePollResult(msg appsync.PollResultMsg) tea.Cmd {
	m.lastResult = &msg

	var cmds []tea.Cmd
	if msg.Schedule != nil {
		cmds = append(cmds, m.todayView.SetSchedule(*msg.Schedule, msg.Stale, msg.FetchedAt))
	}

	switch {
	case msg.AuthError != nil:
		m.setErrorText(msg.AuthError.Message)
	case msg.Error != nil:
		m.logger.Debug("poll pass failed", zap.Error(msg.Error))
	case msg.AutoMissed > 0:
		m.setStatus(fmt.Sprintf("%d overdue dose(s) marked missed", msg.AutoMissed))
	}

	if m.signedIn {
		m.waiting = true
		cmds = append(cmds, m.poller.WaitForNextResult())
	}
	return tea.Batch(cmds...)
}

// syncInbox refreshes the unread count and the reminder banner.
func (m *Model) syncInbox() {
	m.unreadCount = m.inbox.UnreadCount()
	if n, ok := m.inbox.Active(); ok {
		m.todayView.SetBanner(&n)
	} else {
		m.todayView.SetBanner(nil)
	}
}

func (m *Model) setStatus(s string) {
	m.statusMsg = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.setErrorText(err.Error())
}

func (m *Model) setErrorText(s string) {
	m.statusMsg = s
	m.statusErr = true
}

// View renders the full terminal UI inside the frame.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.frame.Header(m.headerTitle(), m.pollStatus())
	content := m.renderContent()
	statusBar := m.frame.StatusBar(m.statusLine())

	return m.frame.Compose(header, content, statusBar)
}

func (m Model) headerTitle() string {
	if !m.signedIn {
		return "medtracker"
	}
	inbox := "Inbox"
	if m.unreadCount > 0 {
		inbox = fmt.Sprintf("Inbox (%d)", m.unreadCount)
	}
	active := -1
	switch m.currentView {
	case ViewToday, ViewDoseForm:
		active = 0
	case ViewInbox:
		active = 1
	}
	return "medtracker  " + ui.RenderTabs([]string{"Today", inbox}, active)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewToday:
		return m.todayView.View()
	case ViewInbox:
		return m.inboxView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewDoseForm:
		return m.doseFormView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// pollStatus returns a short string describing the poller state.
func (m Model) pollStatus() string {
	if !m.signedIn {
		return "signed out"
	}

	st := m.poller.Status()
	switch st.State {
	case appsync.StateRunning:
		return "checking..."
	case appsync.StateError:
		if m.lastResult != nil && m.lastResult.Stale {
			return "⚠ offline, showing " + m.lastResult.FetchedAt.In(m.clock.Location()).Format("15:04")
		}
		return "⚠ unreachable"
	}
	if st.LastSuccess.IsZero() {
		return "connecting..."
	}
	return "updated " + st.LastSuccess.In(m.clock.Location()).Format("15:04:05")
}

// statusLine returns the status message, or keyboard hints for the view.
func (m Model) statusLine() string {
	if m.statusMsg != "" {
		if m.statusErr {
			return theme.ErrorStyle.Render(m.statusMsg)
		}
		return m.statusMsg
	}

	switch m.currentView {
	case ViewLogin:
		return "enter submit | tab next field | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewDoseForm:
		return "enter submit | esc cancel"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewInbox:
		return "enter read | A read all | x delete | C clear | t/s/m resolve | esc back"
	default:
		return "t taken | s skip | m missed | z snooze | enter log | i inbox | ? help | q quit"
	}
}
