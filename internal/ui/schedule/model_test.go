package schedule

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/medtracker/internal/keys"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/reminder"
)

var dhaka = time.FixedZone("UTC+6", 6*60*60)

func occ(medID, hhmm string, hour int, logged *model.DoseOccurrence) reminder.Occurrence {
	at := time.Date(2024, 3, 10, hour, 0, 0, 0, dhaka)
	dose := model.Virtual(medID, at)
	if logged != nil {
		dose = *logged
	}
	return reminder.Occurrence{
		Key:           reminder.Key{Day: "2024-03-10", MedicationID: medID, ScheduledTime: hhmm},
		Medication:    model.Medication{ID: medID, Name: medID, Strength: "10mg"},
		ScheduledTime: hhmm,
		At:            at,
		DoseMinutes:   hour * 60,
		Dose:          dose,
	}
}

func testSchedule() reminder.DaySchedule {
	taken := model.Logged(model.DoseRecord{
		ID: "d1", MedicationID: "c", Status: model.DoseStatusTaken,
	})
	return reminder.DaySchedule{
		Day:      "2024-03-10",
		Overdue:  []reminder.Occurrence{occ("a", "08:00", 8, nil)},
		Upcoming: []reminder.Occurrence{occ("b", "20:00", 20, nil)},
		Resolved: []reminder.Occurrence{occ("c", "07:00", 7, &taken)},
	}
}

func newModel(t *testing.T) Model {
	t.Helper()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, dhaka)
	m := New(keys.DefaultKeyMap(), func() time.Time { return now }, 80, 20)
	m.SetSchedule(testSchedule(), false, now)
	return m
}

func press(m Model, r rune) (Model, tea.Msg) {
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestSetSchedule_SelectsFirstDose(t *testing.T) {
	m := newModel(t)

	it, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", it.Occurrence.Key.MedicationID)
	assert.Equal(t, SectionOverdue, it.Section)
}

func TestKeys_ResolveSelected(t *testing.T) {
	m := newModel(t)

	_, msg := press(m, 't')
	req, ok := msg.(ResolveRequestMsg)
	require.True(t, ok)
	assert.Equal(t, model.DoseStatusTaken, req.Status)
	assert.Equal(t, "a", req.Occurrence.Key.MedicationID)

	_, msg = press(m, 's')
	assert.Equal(t, model.DoseStatusSkipped, msg.(ResolveRequestMsg).Status)

	_, msg = press(m, 'm')
	assert.Equal(t, model.DoseStatusMissed, msg.(ResolveRequestMsg).Status)

	_, msg = press(m, 'z')
	snooze, ok := msg.(SnoozeRequestMsg)
	require.True(t, ok)
	assert.Equal(t, "08:00", snooze.Key.ScheduledTime)
}

func TestKeys_DownSkipsHeaders(t *testing.T) {
	m := newModel(t)

	m, _ = press(m, 'j')
	it, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", it.Occurrence.Key.MedicationID)

	m, _ = press(m, 'j')
	it, _ = m.Selected()
	assert.Equal(t, "c", it.Occurrence.Key.MedicationID)

	m, _ = press(m, 'k')
	it, _ = m.Selected()
	assert.Equal(t, "b", it.Occurrence.Key.MedicationID)

	m, _ = press(m, 'k')
	m, _ = press(m, 'k')
	it, _ = m.Selected()
	assert.Equal(t, "a", it.Occurrence.Key.MedicationID, "cursor never rests on a header")
}

func TestKeys_ResolvedDoseIgnored(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, 'j')
	m, _ = press(m, 'j')

	_, msg := press(m, 't')
	assert.Nil(t, msg)
	_, msg = press(m, 'z')
	assert.Nil(t, msg)
}

func TestSetSchedule_KeepsCursorOnSameDose(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, 'j')

	s := testSchedule()
	s.Overdue = append(s.Overdue, occ("z", "09:00", 9, nil))
	m.SetSchedule(s, false, time.Time{})

	it, _ := m.Selected()
	assert.Equal(t, "b", it.Occurrence.Key.MedicationID)
}

func TestView_BannerAndStale(t *testing.T) {
	m := newModel(t)
	m.SetBanner(&model.Notification{Message: "Time to take a 10mg (scheduled 08:00)"})
	m.SetSchedule(testSchedule(), true, time.Date(2024, 3, 10, 11, 30, 0, 0, dhaka))

	view := m.View()
	assert.Contains(t, view, "Time to take a 10mg")
	assert.Contains(t, view, "offline")
	assert.Contains(t, view, "11:30")
}

func TestView_Empty(t *testing.T) {
	m := New(keys.DefaultKeyMap(), nil, 80, 20)
	assert.Contains(t, m.View(), "Loading")

	m.SetSchedule(reminder.DaySchedule{Day: "2024-03-10"}, false, time.Time{})
	assert.Contains(t, m.View(), "No doses scheduled today.")
}

func TestDueLabel(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, dhaka)
	assert.Equal(t, "due now", dueLabel(now.Add(30*time.Second), now))
	assert.Equal(t, "in 15m", dueLabel(now.Add(15*time.Minute), now))
	assert.Equal(t, "2h05m ago", dueLabel(now.Add(-125*time.Minute), now))
}

func TestItemFor_MissCountdown(t *testing.T) {
	m := newModel(t)
	m.SetAutoMiss(time.Hour)
	m.SetSnoozeLookup(func(reminder.Key) time.Time {
		return time.Date(2024, 3, 10, 12, 10, 0, 0, dhaka)
	})

	o := occ("a", "08:00", 8, nil)
	it := m.itemFor(SectionOverdue, o)
	assert.True(t, it.MissAt.Equal(o.At.Add(time.Hour)))
	assert.False(t, it.SnoozedUntil.IsZero())

	done := m.itemFor(SectionDone, o)
	assert.True(t, done.MissAt.IsZero())
}
