package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/api"
	"github.com/nhle/medtracker/internal/clock"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/notify"
	"github.com/nhle/medtracker/internal/reminder"
	appsync "github.com/nhle/medtracker/internal/sync"
	"github.com/nhle/medtracker/internal/ui/command"
	"github.com/nhle/medtracker/internal/ui/login"
)

type fakePoller struct {
	started, stopped, refreshed int

	tracker    *reminder.Tracker
	resolveErr error
	resolved   []model.DoseStatus
	snoozed    []reminder.Key
	until      time.Time
}

func (p *fakePoller) Start() tea.Cmd {
	p.started++
	return func() tea.Msg { return nil }
}
func (p *fakePoller) Stop()                      { p.stopped++ }
func (p *fakePoller) Refresh() error             { p.refreshed++; return nil }
func (p *fakePoller) Status() appsync.Status     { return appsync.Status{State: appsync.StateIdle} }
func (p *fakePoller) WaitForNextResult() tea.Cmd { return func() tea.Msg { return nil } }
func (p *fakePoller) Tracker() *reminder.Tracker { return p.tracker }

func (p *fakePoller) Resolve(_ context.Context, _ reminder.Occurrence, status model.DoseStatus, _ string) (model.DoseRecord, error) {
	if p.resolveErr != nil {
		return model.DoseRecord{}, p.resolveErr
	}
	p.resolved = append(p.resolved, status)
	return model.DoseRecord{ID: "d1", Status: status}, nil
}

func (p *fakePoller) ResolveNotification(ctx context.Context, _ model.Notification, status model.DoseStatus, notes string) (model.DoseRecord, error) {
	return p.Resolve(ctx, reminder.Occurrence{}, status, notes)
}

func (p *fakePoller) Snooze(key reminder.Key, _ time.Duration) (time.Time, error) {
	p.snoozed = append(p.snoozed, key)
	return p.until, nil
}

type fakeSession struct {
	baseURL string
	token   string
	meErr   error
}

func (s *fakeSession) SetToken(token string)     { s.token = token }
func (s *fakeSession) SetBaseURL(baseURL string) { s.baseURL = baseURL }
func (s *fakeSession) BaseURL() string           { return s.baseURL }
func (s *fakeSession) Me(context.Context) (*api.User, error) {
	if s.meErr != nil {
		return nil, s.meErr
	}
	return &api.User{ID: "u1", Name: "Rahim"}, nil
}

type fakeTokens struct {
	token   string
	cleared bool
}

func (t *fakeTokens) Token() (string, error) {
	if t.token == "" {
		return "", errors.New("not found")
	}
	return t.token, nil
}
func (t *fakeTokens) SetToken(token string) error { t.token = token; return nil }
func (t *fakeTokens) ClearToken() error          { t.token = ""; t.cleared = true; return nil }

type harness struct {
	poller  *fakePoller
	session *fakeSession
	tokens  *fakeTokens
	inbox   *notify.Inbox
	cfgPath string
	model   Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loc := time.FixedZone("UTC+6", 6*60*60)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, loc)

	h := &harness{
		poller:  &fakePoller{tracker: reminder.NewTracker(), until: now.Add(10 * time.Minute)},
		session: &fakeSession{baseURL: "http://localhost:8080"},
		tokens:  &fakeTokens{},
		inbox:   notify.NewInbox(zap.NewNop()),
		cfgPath: filepath.Join(t.TempDir(), "config.yaml"),
	}
	t.Cleanup(h.inbox.Close)

	h.model = New(Deps{
		Config:     model.DefaultAppConfig(),
		ConfigPath: h.cfgPath,
		Clock:      clock.New(loc, func() time.Time { return now }),
		Poller:     h.poller,
		Session:    h.session,
		Tokens:     h.tokens,
		Inbox:      h.inbox,
		Logger:     zap.NewNop(),
	})
	h.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) signedIn(t *testing.T) {
	t.Helper()
	h.tokens.token = "secret"
	h.send(h.model.restoreSession()())
	require.True(t, h.model.signedIn)
}

func TestRestoreSession_NoToken(t *testing.T) {
	h := newHarness(t)

	msg := h.model.restoreSession()()
	assert.IsType(t, noStoredSessionMsg{}, msg)

	h.send(msg)
	assert.Equal(t, ViewLogin, h.model.currentView)
	assert.Equal(t, 0, h.poller.started)
}

func TestRestoreSession_ValidToken(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)

	assert.Equal(t, "secret", h.session.token)
	assert.Equal(t, ViewToday, h.model.currentView)
	assert.Equal(t, 1, h.poller.started)
	assert.True(t, h.model.waiting)
	assert.Equal(t, "Signed in as Rahim", h.model.statusMsg)
}

func TestRestoreSession_RejectedToken(t *testing.T) {
	h := newHarness(t)
	h.tokens.token = "stale"
	h.session.meErr = &api.AuthError{Message: "unauthorized"}

	msg := h.model.restoreSession()()
	failed, ok := msg.(sessionFailedMsg)
	require.True(t, ok)
	assert.Contains(t, failed.message, "expired")
	assert.True(t, h.tokens.cleared)
	assert.Empty(t, h.session.token)

	h.send(msg)
	assert.Equal(t, ViewLogin, h.model.currentView)
	assert.Equal(t, 0, h.poller.started)
}

func TestRestoreSession_OfflineStillStarts(t *testing.T) {
	h := newHarness(t)
	h.tokens.token = "secret"
	h.session.meErr = errors.New("connection refused")

	msg := h.model.restoreSession()()
	started, ok := msg.(sessionStartedMsg)
	require.True(t, ok)
	assert.True(t, started.offline)

	h.send(msg)
	assert.Equal(t, 1, h.poller.started)
	assert.True(t, h.model.statusErr)
}

func TestSignIn_StoresTokenAndBaseURL(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(login.SubmitMsg{BaseURL: "https://meds.example.com", Token: "new-token"})
	require.NotNil(t, cmd)
	msg := cmd()

	started, ok := msg.(sessionStartedMsg)
	require.True(t, ok)
	assert.Equal(t, "https://meds.example.com", started.baseURL)
	assert.Equal(t, "new-token", h.tokens.token)

	data, err := os.ReadFile(h.cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://meds.example.com")

	h.send(msg)
	assert.Equal(t, "https://meds.example.com", h.model.cfg.API.BaseURL)
	assert.Equal(t, 1, h.poller.started)
}

func TestSignIn_RejectedRestoresBaseURL(t *testing.T) {
	h := newHarness(t)
	h.session.meErr = &api.AuthError{Message: "unauthorized"}

	msg := h.send(login.SubmitMsg{BaseURL: "https://meds.example.com", Token: "bad"})()
	failed, ok := msg.(sessionFailedMsg)
	require.True(t, ok)
	assert.Contains(t, failed.message, "rejected")
	assert.Equal(t, "http://localhost:8080", h.session.baseURL)
	assert.Empty(t, h.tokens.token)
}

func TestPollResult_UpdatesSchedule(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)
	h.model.waiting = false

	at := time.Date(2024, 3, 10, 8, 0, 0, 0, time.FixedZone("UTC+6", 6*60*60))
	occ := reminder.Occurrence{
		Key:           reminder.Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"},
		Medication:    model.Medication{ID: "m1", Name: "Metformin"},
		ScheduledTime: "08:00",
		At:            at,
		Dose:          model.Virtual("m1", at),
	}
	cmd := h.send(appsync.PollResultMsg{
		Day:      "2024-03-10",
		Schedule: &reminder.DaySchedule{Day: "2024-03-10", Upcoming: []reminder.Occurrence{occ}},
	})

	assert.NotNil(t, cmd, "waits for the next result")
	assert.True(t, h.model.waiting)
	it, ok := h.model.todayView.Selected()
	require.True(t, ok)
	assert.Equal(t, "m1", it.Occurrence.Key.MedicationID)
}

func TestPollResult_AuthErrorShown(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)

	h.send(appsync.PollResultMsg{AuthError: &appsync.AuthErrorMsg{Message: "Session expired."}})
	assert.Equal(t, "Session expired.", h.model.statusMsg)
	assert.True(t, h.model.statusErr)
}

func TestResolve_SuccessLogsToInbox(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)

	occ := reminder.Occurrence{
		Medication:    model.Medication{ID: "m1", Name: "Metformin", Strength: "500mg"},
		ScheduledTime: "08:00",
	}
	msg := h.model.resolveOccurrence(occ, model.DoseStatusTaken, "")()
	h.send(msg)

	assert.Equal(t, []model.DoseStatus{model.DoseStatusTaken}, h.poller.resolved)
	assert.Equal(t, 1, h.poller.refreshed)
	assert.Equal(t, "Metformin 500mg marked taken", h.model.statusMsg)

	list := h.inbox.List()
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationTypeDoseResolved, list[0].Type)
	assert.True(t, list[0].Read)
}

func TestResolve_FailureShowsError(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)
	h.poller.resolveErr = errors.New("ledger down")

	occ := reminder.Occurrence{Medication: model.Medication{Name: "Metformin"}, ScheduledTime: "08:00"}
	h.send(h.model.resolveOccurrence(occ, model.DoseStatusSkipped, "")())

	assert.True(t, h.model.statusErr)
	assert.Contains(t, h.model.statusMsg, "Could not mark Metformin skipped")
	assert.Equal(t, 0, h.inbox.Len())
	assert.Equal(t, 0, h.poller.refreshed)
}

func TestResolveNotification_MarksRead(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)

	n := h.inbox.Add(model.Notification{
		Type:    model.NotificationTypeReminder,
		Title:   notify.TitleReminder,
		Message: "Time to take Metformin 500mg (scheduled 08:00)",
		Data:    &model.ReminderData{MedicationID: "m1", Day: "2024-03-10", DoseTime: "08:00"},
	})

	h.send(h.model.resolveNotification(n, model.DoseStatusTaken)())

	got, ok := h.inbox.Get(n.ID)
	require.True(t, ok)
	assert.True(t, got.Read)
	assert.Equal(t, "Metformin 500mg marked taken", h.model.statusMsg)
}

func TestSnooze_ShowsDeadline(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)

	key := reminder.Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"}
	h.model.snooze(key, 0)

	assert.Equal(t, []reminder.Key{key}, h.poller.snoozed)
	assert.Equal(t, "Snoozed until 08:10", h.model.statusMsg)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)
	h.inbox.Add(model.Notification{Type: model.NotificationTypeReminder, Title: "x"})

	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("L")})

	assert.Equal(t, 1, h.poller.stopped)
	assert.True(t, h.tokens.cleared)
	assert.Empty(t, h.session.token)
	assert.False(t, h.model.signedIn)
	assert.Equal(t, ViewLogin, h.model.currentView)
	_, active := h.inbox.Active()
	assert.False(t, active)
}

func TestGlobalKeys_SwitchViews(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)

	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	assert.Equal(t, ViewInbox, h.model.currentView)

	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, ViewHelp, h.model.currentView)

	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewInbox, h.model.currentView)

	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	assert.Equal(t, ViewToday, h.model.currentView)

	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, 1, h.poller.refreshed)
}

func TestInboxChange_UpdatesBannerAndCount(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)

	h.inbox.Add(model.Notification{
		Type:    model.NotificationTypeReminder,
		Title:   notify.TitleReminder,
		Message: "Time to take Metformin (scheduled 08:00)",
	})
	h.send(inboxChangedMsg{})

	assert.Equal(t, 1, h.model.unreadCount)
	assert.Contains(t, h.model.View(), "Time to take Metformin")
}

func TestCommandPalette(t *testing.T) {
	h := newHarness(t)
	h.signedIn(t)
	h.inbox.Add(model.Notification{Type: model.NotificationTypeSystem, Title: "x"})

	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(":")})
	assert.Equal(t, ViewCommand, h.model.currentView)

	h.send(command.CommandMsg{Name: command.ReadAll})
	assert.Equal(t, ViewToday, h.model.currentView)
	assert.Equal(t, 0, h.inbox.UnreadCount())

	h.send(command.CommandMsg{Name: command.Inbox})
	assert.Equal(t, ViewInbox, h.model.currentView)

	h.send(command.CommandMsg{Name: command.Snooze, Minutes: 30})
	assert.True(t, h.model.statusErr, "no dose selected")

	h.send(command.ErrorMsg{Err: errors.New("unknown command")})
	assert.Equal(t, "unknown command", h.model.statusMsg)
}

func TestReminderLabel(t *testing.T) {
	n := model.Notification{Message: "Time to take Aspirin 81mg (scheduled 21:00)"}
	assert.Equal(t, "Aspirin 81mg", reminderLabel(n))

	n = model.Notification{Message: "odd", Data: &model.ReminderData{MedicationID: "m9"}}
	assert.Equal(t, "m9", reminderLabel(n))
}
