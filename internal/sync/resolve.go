package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/api"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/reminder"
)

// Resolve records a user decision for an occurrence. A virtual dose gets a
// new ledger record; a logged one is updated. On success the reminder key
// is settled on the tracker and a matching active reminder is dismissed. On
// failure the error is returned and tracking is left alone, so the
// reminder keeps firing.
func (p *Poller) Resolve(
	ctx context.Context,
	occ reminder.Occurrence,
	status model.DoseStatus,
	notes string,
) (model.DoseRecord, error) {
	if !status.Resolved() {
		return model.DoseRecord{}, fmt.Errorf("%w: %s", ErrNotResolution, status)
	}

	rec, err := p.write(ctx, occ, status, notes)
	if err != nil {
		return model.DoseRecord{}, fmt.Errorf(
			"marking %s %s at %s: %w",
			occ.Key.MedicationID, status, occ.ScheduledTime, err,
		)
	}

	p.tracker.Settle(occ.Key)
	if p.active != nil {
		p.active.DismissActive(occ.Key.MedicationID, occ.Key.Day, occ.ScheduledTime)
	}

	p.logger.Info("dose resolved",
		zap.String("medication_id", occ.Key.MedicationID),
		zap.String("day", occ.Key.Day),
		zap.String("dose_time", occ.ScheduledTime),
		zap.String("status", status.String()),
	)
	return rec, nil
}

// write sends the status to the ledger. When a virtual dose turns out to
// have been logged elsewhere in the meantime (409), the existing record is
// looked up and updated instead.
func (p *Poller) write(
	ctx context.Context,
	occ reminder.Occurrence,
	status model.DoseStatus,
	notes string,
) (model.DoseRecord, error) {
	if rec, ok := occ.Dose.Record(); ok && rec.ID != "" {
		return p.dir.ResolveDose(ctx, rec.ID, status, notes)
	}

	rec, err := p.dir.CreateDoseRecord(ctx, occ.Key.MedicationID, occ.At, status, notes)
	if err == nil || api.StatusCode(err) != http.StatusConflict {
		return rec, err
	}

	existing, lookupErr := p.findRecord(ctx, occ)
	if lookupErr != nil {
		return model.DoseRecord{}, errors.Join(err, lookupErr)
	}
	return p.dir.ResolveDose(ctx, existing.ID, status, notes)
}

func (p *Poller) findRecord(ctx context.Context, occ reminder.Occurrence) (model.DoseRecord, error) {
	doses, err := p.dir.FetchTodayDoseRecords(ctx, occ.Key.Day)
	if err != nil {
		return model.DoseRecord{}, err
	}
	for _, d := range doses {
		if d.MedicationID == occ.Key.MedicationID &&
			p.clock.DayOf(d.ScheduledTime) == occ.Key.Day &&
			p.clock.TimeOfDay(d.ScheduledTime) == occ.ScheduledTime {
			return d, nil
		}
	}
	return model.DoseRecord{}, fmt.Errorf("no ledger record for %s", occ.Key)
}

// ResolveNotification resolves the dose a reminder notification refers to.
func (p *Poller) ResolveNotification(
	ctx context.Context,
	n model.Notification,
	status model.DoseStatus,
	notes string,
) (model.DoseRecord, error) {
	occ, err := p.OccurrenceFor(n)
	if err != nil {
		return model.DoseRecord{}, err
	}
	return p.Resolve(ctx, occ, status, notes)
}

// OccurrenceFor rebuilds the dose occurrence a reminder notification
// carries.
func (p *Poller) OccurrenceFor(n model.Notification) (reminder.Occurrence, error) {
	if n.Type != model.NotificationTypeReminder || n.Data == nil {
		return reminder.Occurrence{}, fmt.Errorf("notification %s does not refer to a dose", n.ID)
	}

	d := n.Data
	at, err := p.clock.At(d.Day, d.DoseTime)
	if err != nil {
		return reminder.Occurrence{}, fmt.Errorf("notification %s: %w", n.ID, err)
	}

	dose := model.Virtual(d.MedicationID, at)
	if d.DoseID != "" {
		dose = model.Logged(model.DoseRecord{
			ID:            d.DoseID,
			MedicationID:  d.MedicationID,
			ScheduledTime: at,
			Status:        model.DoseStatusPending,
		})
	}

	return reminder.Occurrence{
		Key: reminder.Key{
			Day:           d.Day,
			MedicationID:  d.MedicationID,
			ScheduledTime: d.DoseTime,
		},
		Medication:    model.Medication{ID: d.MedicationID},
		ScheduledTime: d.DoseTime,
		At:            at,
		Dose:          dose,
	}, nil
}

// Snooze defers further reminders for key by d and dismisses the active
// reminder if it refers to key. It returns the deadline.
func (p *Poller) Snooze(key reminder.Key, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, fmt.Errorf("snooze duration must be positive, got %s", d)
	}
	if !p.Running() {
		return time.Time{}, ErrNotRunning
	}

	until := p.clock.Now().Time.Add(d)
	p.tracker.Snooze(key, until)
	if p.active != nil {
		p.active.DismissActive(key.MedicationID, key.Day, key.ScheduledTime)
	}

	p.logger.Info("reminder snoozed",
		zap.String("medication_id", key.MedicationID),
		zap.String("dose_time", key.ScheduledTime),
		zap.Time("until", until),
	)
	return until, nil
}
