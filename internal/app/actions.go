package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/reminder"
)

// doseResolvedMsg reports the outcome of a ledger write.
type doseResolvedMsg struct {
	label    string
	doseTime string
	status   model.DoseStatus
	err      error

	// notificationID is the inbox entry the resolution started from.
	notificationID string
}

// inboxChangedMsg is sent whenever the inbox contents change.
type inboxChangedMsg struct{}

// resolveOccurrence writes a status for a dose from the today view or the
// dose form.
func (m Model) resolveOccurrence(occ reminder.Occurrence, status model.DoseStatus, notes string) tea.Cmd {
	p := m.poller
	label := occ.Medication.Label()
	if label == "" {
		label = occ.Key.MedicationID
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := p.Resolve(ctx, occ, status, notes)
		return doseResolvedMsg{
			label:    label,
			doseTime: occ.ScheduledTime,
			status:   status,
			err:      err,
		}
	}
}

// resolveNotification writes a status for the dose a reminder refers to.
func (m Model) resolveNotification(n model.Notification, status model.DoseStatus) tea.Cmd {
	p := m.poller

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := p.ResolveNotification(ctx, n, status, "")
		msg := doseResolvedMsg{
			label:          reminderLabel(n),
			status:         status,
			err:            err,
			notificationID: n.ID,
		}
		if n.Data != nil {
			msg.doseTime = n.Data.DoseTime
		}
		return msg
	}
}

// handleResolved surfaces a write result. Failures stay in the status bar
// and the reminder keeps firing; successes are logged to the inbox and
// trigger a refresh so the schedule moves the dose to done.
func (m *Model) handleResolved(msg doseResolvedMsg) tea.Cmd {
	verb := strings.ToLower(msg.status.String())

	if msg.err != nil {
		m.logger.Warn("resolving dose failed",
			zap.String("dose_time", msg.doseTime),
			zap.String("status", msg.status.String()),
			zap.Error(msg.err),
		)
		m.setErrorText(fmt.Sprintf("Could not mark %s %s: %v", msg.label, verb, msg.err))
		return nil
	}

	if msg.notificationID != "" {
		m.inbox.MarkRead(msg.notificationID)
	}
	m.inbox.Add(model.Notification{
		Type:    model.NotificationTypeDoseResolved,
		Title:   "Dose recorded",
		Message: fmt.Sprintf("%s marked %s (scheduled %s)", msg.label, verb, msg.doseTime),
		Read:    true,
	})
	m.setStatus(fmt.Sprintf("%s marked %s", msg.label, verb))

	if err := m.poller.Refresh(); err != nil {
		m.logger.Debug("refresh after resolve", zap.Error(err))
	}
	return nil
}

// snooze defers the reminder for key by d, or by the configured snooze
// length when d is zero.
func (m *Model) snooze(key reminder.Key, d time.Duration) {
	if d <= 0 {
		d = time.Duration(m.cfg.Reminders.SnoozeMin) * time.Minute
	}
	until, err := m.poller.Snooze(key, d)
	if err != nil {
		m.setError(err)
		return
	}
	m.setStatus("Snoozed until " + until.In(m.clock.Location()).Format("15:04"))
}

// waitForInboxChange blocks until the inbox signals a change.
func (m Model) waitForInboxChange() tea.Cmd {
	ch := m.inbox.Changes()
	return func() tea.Msg {
		<-ch
		return inboxChangedMsg{}
	}
}

// reminderLabel extracts the medication label from a reminder message of
// the form "Time to take <label> (scheduled HH:MM)".
func reminderLabel(n model.Notification) string {
	s := strings.TrimPrefix(n.Message, "Time to take ")
	if i := strings.LastIndex(s, " (scheduled"); i > 0 {
		return s[:i]
	}
	if n.Data != nil {
		return n.Data.MedicationID
	}
	return "dose"
}
