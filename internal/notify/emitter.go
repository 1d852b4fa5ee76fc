package notify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/reminder"
)

// Reminder titles.
const (
	TitleReminder       = "Medication Reminder"
	TitleReminderRepeat = "Medication Reminder (Repeat)"
)

// SoundPlayer plays the reminder sound.
type SoundPlayer interface {
	Play() error
}

// DesktopNotifier shows an OS-level notification.
type DesktopNotifier interface {
	Notify(title, message string) error
}

// Emitter converts fire decisions into an inbox entry plus sound and
// desktop side effects.
type Emitter struct {
	inbox   *Inbox
	sound   SoundPlayer
	desktop DesktopNotifier
	logger  *zap.Logger

	desktopAllowed atomic.Bool
	effects        sync.WaitGroup
}

// NewEmitter creates an Emitter. Nil capabilities are treated as absent.
// Desktop notifications start denied; see SetDesktopPermission.
func NewEmitter(inbox *Inbox, sound SoundPlayer, desktop DesktopNotifier, logger *zap.Logger) *Emitter {
	if sound == nil {
		sound = NopSound{}
	}
	if desktop == nil {
		desktop = NopDesktop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		inbox:   inbox,
		sound:   sound,
		desktop: desktop,
		logger:  logger,
	}
}

// SetDesktopPermission grants or revokes desktop notifications.
func (e *Emitter) SetDesktopPermission(granted bool) {
	e.desktopAllowed.Store(granted)
}

// DesktopPermission reports whether desktop notifications are granted.
func (e *Emitter) DesktopPermission() bool {
	return e.desktopAllowed.Load()
}

// Emit records the reminder in the inbox, where it becomes the active
// reminder, and starts the side effects without waiting for them.
func (e *Emitter) Emit(f reminder.Fire) model.Notification {
	n := e.inbox.Add(ReminderNotification(f))

	e.logger.Info("reminder emitted",
		zap.String("medication_id", f.Key.MedicationID),
		zap.String("day", f.Key.Day),
		zap.String("dose_time", f.ScheduledTime),
		zap.Bool("repeat", f.Repeat),
	)

	e.effects.Add(1)
	go func() {
		defer e.effects.Done()
		if err := e.sound.Play(); err != nil {
			e.logger.Warn("playing reminder sound", zap.Error(err))
		}
	}()

	if e.desktopAllowed.Load() {
		e.effects.Add(1)
		go func() {
			defer e.effects.Done()
			_ = e.desktop.Notify(n.Title, n.Message)
		}()
	}

	return n
}

// Wait blocks until all started side effects have returned.
func (e *Emitter) Wait() {
	e.effects.Wait()
}

// ReminderNotification builds the inbox entry for a fire decision.
func ReminderNotification(f reminder.Fire) model.Notification {
	title := TitleReminder
	if f.Repeat {
		title = TitleReminderRepeat
	}

	data := &model.ReminderData{
		MedicationID: f.Key.MedicationID,
		Day:          f.Key.Day,
		DoseTime:     f.ScheduledTime,
	}
	if rec, ok := f.Dose.Record(); ok {
		data.DoseID = rec.ID
	}

	return model.Notification{
		Type:    model.NotificationTypeReminder,
		Title:   title,
		Message: fmt.Sprintf("Time to take %s (scheduled %s)", f.Medication.Label(), f.ScheduledTime),
		Data:    data,
	}
}
