package inbox

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/keys"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/notify"
)

func setup(t *testing.T) (*notify.Inbox, Model) {
	t.Helper()
	in := notify.NewInbox(zap.NewNop())
	t.Cleanup(in.Close)

	in.Add(model.Notification{
		Type:    model.NotificationTypeSystem,
		Title:   "Signed in",
		Message: "Welcome back",
	})
	in.Add(model.Notification{
		Type:    model.NotificationTypeReminder,
		Title:   notify.TitleReminder,
		Message: "Time to take Metformin 500mg (scheduled 08:00)",
		Data:    &model.ReminderData{MedicationID: "m1", Day: "2024-03-10", DoseTime: "08:00"},
	})

	return in, New(in, keys.DefaultKeyMap(), time.Now, 80, 20)
}

func send(m Model, msg tea.KeyMsg) (Model, tea.Msg) {
	m, cmd := m.Update(msg)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew_ListsNewestFirst(t *testing.T) {
	_, m := setup(t)

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, model.NotificationTypeReminder, n.Type)
	assert.Contains(t, m.View(), "Metformin")
}

func TestKeys_MarkRead(t *testing.T) {
	in, m := setup(t)
	require.Equal(t, 2, in.UnreadCount())

	m, _ = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 1, in.UnreadCount())

	n, _ := m.Selected()
	assert.True(t, n.Read)

	_, _ = send(m, runes("A"))
	assert.Equal(t, 0, in.UnreadCount())
}

func TestKeys_DeleteAndClear(t *testing.T) {
	in, m := setup(t)

	m, _ = send(m, runes("x"))
	assert.Equal(t, 1, in.Len())
	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Signed in", n.Title)

	m, _ = send(m, runes("C"))
	assert.Equal(t, 0, in.Len())
	assert.Contains(t, m.View(), "No notifications.")
}

func TestKeys_ResolveReminderOnly(t *testing.T) {
	_, m := setup(t)

	_, msg := send(m, runes("t"))
	req, ok := msg.(ResolveRequestMsg)
	require.True(t, ok)
	assert.Equal(t, model.DoseStatusTaken, req.Status)
	assert.Equal(t, "m1", req.Notification.Data.MedicationID)

	m, _ = send(m, runes("j"))
	_, msg = send(m, runes("s"))
	assert.Nil(t, msg, "system notifications carry no dose")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "", relativeTime(time.Time{}, now))
	assert.Equal(t, "just now", relativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", relativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", relativeTime(now.Add(-49*time.Hour), now))
}
