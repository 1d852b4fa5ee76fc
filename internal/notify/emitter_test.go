package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/reminder"
)

type fakeSound struct {
	mu    sync.Mutex
	plays int
	err   error
	block chan struct{}
}

func (s *fakeSound) Play() error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	return s.err
}

func (s *fakeSound) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

type fakeDesktop struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (d *fakeDesktop) Notify(title, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titles = append(d.titles, title)
	return d.err
}

func (d *fakeDesktop) Titles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.titles...)
}

func sampleFire(repeat bool, rec *model.DoseRecord) reminder.Fire {
	at := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)
	dose := model.Virtual("m1", at)
	if rec != nil {
		dose = model.Logged(*rec)
	}
	return reminder.Fire{
		Occurrence: reminder.Occurrence{
			Key:           reminder.Key{Day: "2024-03-10", MedicationID: "m1", ScheduledTime: "08:00"},
			Medication:    model.Medication{ID: "m1", Name: "Metformin", Strength: "500mg"},
			ScheduledTime: "08:00",
			At:            at,
			Dose:          dose,
		},
		Repeat: repeat,
	}
}

func TestReminderNotification(t *testing.T) {
	n := ReminderNotification(sampleFire(false, nil))
	assert.Equal(t, model.NotificationTypeReminder, n.Type)
	assert.Equal(t, TitleReminder, n.Title)
	assert.Equal(t, "Time to take Metformin 500mg (scheduled 08:00)", n.Message)
	require.NotNil(t, n.Data)
	assert.Equal(t, "m1", n.Data.MedicationID)
	assert.Equal(t, "08:00", n.Data.DoseTime)
	assert.Empty(t, n.Data.DoseID)

	rec := &model.DoseRecord{ID: "d1", MedicationID: "m1", Status: model.DoseStatusPending}
	n = ReminderNotification(sampleFire(true, rec))
	assert.Equal(t, TitleReminderRepeat, n.Title)
	assert.Equal(t, "d1", n.Data.DoseID)
}

func TestEmitter_Emit(t *testing.T) {
	in := NewInbox(nil)
	sound := &fakeSound{}
	desktop := &fakeDesktop{}
	e := NewEmitter(in, sound, desktop, zap.NewNop())
	e.SetDesktopPermission(true)

	n := e.Emit(sampleFire(false, nil))
	e.Wait()

	active, ok := in.Active()
	require.True(t, ok)
	assert.Equal(t, n.ID, active.ID)
	assert.Equal(t, 1, sound.Plays())
	assert.Equal(t, []string{TitleReminder}, desktop.Titles())
}

func TestEmitter_DesktopNeedsPermission(t *testing.T) {
	desktop := &fakeDesktop{}
	e := NewEmitter(NewInbox(nil), &fakeSound{}, desktop, nil)
	assert.False(t, e.DesktopPermission())

	e.Emit(sampleFire(false, nil))
	e.Wait()
	assert.Empty(t, desktop.Titles())
}

func TestEmitter_SideEffectFailuresSwallowed(t *testing.T) {
	in := NewInbox(nil)
	sound := &fakeSound{err: errors.New("no audio device")}
	desktop := &fakeDesktop{err: errors.New("no dbus")}
	e := NewEmitter(in, sound, desktop, zap.NewNop())
	e.SetDesktopPermission(true)

	e.Emit(sampleFire(true, nil))
	e.Wait()

	assert.Equal(t, 1, in.Len())
	assert.Equal(t, 1, sound.Plays())
}

func TestEmitter_DoesNotBlockOnSound(t *testing.T) {
	in := NewInbox(nil)
	sound := &fakeSound{block: make(chan struct{})}
	e := NewEmitter(in, sound, nil, zap.NewNop())

	done := make(chan struct{})
	go func() {
		e.Emit(sampleFire(false, nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on the sound player")
	}
	assert.Equal(t, 1, in.Len())

	close(sound.block)
	e.Wait()
}

func TestEmitter_NilCapabilities(t *testing.T) {
	e := NewEmitter(NewInbox(nil), nil, nil, nil)
	e.SetDesktopPermission(true)
	e.Emit(sampleFire(false, nil))
	e.Wait()
}
