package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Decide(t *testing.T) {
	tr := NewTracker()
	key := Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"}
	base := time.Date(2024, 3, 10, 1, 55, 0, 0, time.UTC)

	fire, repeat := tr.decide(key, base, 5*time.Minute)
	assert.True(t, fire)
	assert.False(t, repeat)

	fire, repeat = tr.decide(key, base.Add(4*time.Minute+59*time.Second), 5*time.Minute)
	assert.False(t, fire)
	assert.True(t, repeat)

	fire, repeat = tr.decide(key, base.Add(5*time.Minute), 5*time.Minute)
	assert.True(t, fire)
	assert.True(t, repeat)
	assert.Equal(t, base.Add(5*time.Minute), tr.Last(key))
}

func TestTracker_ClearDropsSnooze(t *testing.T) {
	tr := NewTracker()
	key := Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"}
	now := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)

	tr.MarkNotified(key, now)
	tr.Snooze(key, now.Add(10*time.Minute))
	assert.Equal(t, now.Add(10*time.Minute), tr.SnoozedUntil(key))

	tr.Clear(key)
	assert.True(t, tr.Last(key).IsZero())
	assert.True(t, tr.SnoozedUntil(key).IsZero())
	assert.Zero(t, tr.Len())
}

func TestTracker_SnoozeBeforeFirstNotification(t *testing.T) {
	tr := NewTracker()
	key := Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"}
	now := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)

	tr.Snooze(key, now.Add(time.Minute))

	fire, _ := tr.decide(key, now, 5*time.Minute)
	assert.False(t, fire)

	fire, repeat := tr.decide(key, now.Add(time.Minute), 5*time.Minute)
	assert.True(t, fire)
	assert.False(t, repeat, "first reminder after the snooze is not a repeat")
}

func TestTracker_SnoozeAfterNotificationRepeats(t *testing.T) {
	tr := NewTracker()
	key := Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"}
	now := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)

	tr.MarkNotified(key, now)
	tr.Snooze(key, now.Add(10*time.Minute))

	fire, repeat := tr.decide(key, now.Add(10*time.Minute), 5*time.Minute)
	assert.True(t, fire)
	assert.True(t, repeat)
}

func TestTracker_SettledStaysSilent(t *testing.T) {
	tr := NewTracker()
	key := Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"}
	now := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)

	tr.MarkNotified(key, now)
	tr.Snooze(key, now.Add(time.Minute))
	tr.Settle(key)
	assert.True(t, tr.Settled(key))
	assert.Zero(t, tr.Len())
	assert.True(t, tr.SnoozedUntil(key).IsZero())

	fire, _ := tr.decide(key, now.Add(time.Hour), 5*time.Minute)
	assert.False(t, fire)

	tr.Clear(key)
	assert.False(t, tr.Settled(key))
	fire, repeat := tr.decide(key, now.Add(time.Hour), 5*time.Minute)
	assert.True(t, fire)
	assert.False(t, repeat)
}

func TestTracker_PurgeStaleAndReset(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	old := Key{Day: "2024-03-09", MedicationID: "m1", ScheduledTime: "08:00"}
	cur := Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"}

	tr.MarkNotified(old, now)
	tr.MarkNotified(cur, now)
	tr.Snooze(old, now.Add(time.Hour))
	settledOld := Key{Day: "2024-03-09", MedicationID: "m2", ScheduledTime: "09:00"}
	tr.Settle(settledOld)
	tr.Settle(Key{Day: "2024-03-10", MedicationID: "m2", ScheduledTime: "09:00"})

	assert.Equal(t, 1, tr.PurgeStale("2024-03-10"))
	assert.True(t, tr.SnoozedUntil(old).IsZero())
	assert.False(t, tr.Settled(settledOld))
	assert.Equal(t, 1, tr.Len())

	tr.Reset()
	assert.Zero(t, tr.Len())
	assert.False(t, tr.Settled(Key{Day: "2024-03-10", MedicationID: "m2", ScheduledTime: "09:00"}))
}

func TestKey_String(t *testing.T) {
	k := Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"}
	assert.Equal(t, "2024-03-10|m1|08:00", k.String())
}
