package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownStatus is returned when a status string is not one of the
// known dose states.
var ErrUnknownStatus = errors.New("unknown dose status")

// DoseStatus is the state of a single dose in the ledger.
type DoseStatus int

const (
	DoseStatusPending DoseStatus = iota
	DoseStatusTaken
	DoseStatusSkipped
	DoseStatusMissed
)

// String returns the wire representation of the status.
func (s DoseStatus) String() string {
	switch s {
	case DoseStatusPending:
		return "PENDING"
	case DoseStatusTaken:
		return "TAKEN"
	case DoseStatusSkipped:
		return "SKIPPED"
	case DoseStatusMissed:
		return "MISSED"
	default:
		return fmt.Sprintf("DoseStatus(%d)", int(s))
	}
}

// Resolved reports whether the status retires the dose's reminder.
func (s DoseStatus) Resolved() bool {
	switch s {
	case DoseStatusTaken, DoseStatusSkipped, DoseStatusMissed:
		return true
	case DoseStatusPending:
		return false
	default:
		return false
	}
}

// ParseDoseStatus converts a wire status (case-insensitive) to a DoseStatus.
func ParseDoseStatus(s string) (DoseStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return DoseStatusPending, nil
	case "TAKEN":
		return DoseStatusTaken, nil
	case "SKIPPED":
		return DoseStatusSkipped, nil
	case "MISSED":
		return DoseStatusMissed, nil
	default:
		return DoseStatusPending, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DoseStatus) MarshalText() ([]byte, error) {
	switch s {
	case DoseStatusPending, DoseStatusTaken, DoseStatusSkipped, DoseStatusMissed:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DoseStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseDoseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DoseRecord is a ledger entry for one scheduled dose.
type DoseRecord struct {
	ID            string     `json:"id"`
	MedicationID  string     `json:"medication_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Status        DoseStatus `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	TakenAt       *time.Time `json:"taken_at,omitempty"`
}

// DoseOccurrence is either a dose that already has a ledger record or a
// virtual slot that has none yet. Resolving a virtual occurrence creates a
// record; resolving a logged one updates it.
type DoseOccurrence struct {
	record        *DoseRecord
	medicationID  string
	scheduledTime time.Time
}

// Logged wraps an existing ledger record.
func Logged(r DoseRecord) DoseOccurrence {
	return DoseOccurrence{
		record:        &r,
		medicationID:  r.MedicationID,
		scheduledTime: r.ScheduledTime,
	}
}

// Virtual describes a scheduled slot with no ledger record.
func Virtual(medicationID string, scheduledTime time.Time) DoseOccurrence {
	return DoseOccurrence{
		medicationID:  medicationID,
		scheduledTime: scheduledTime,
	}
}

// IsVirtual reports whether the occurrence has no ledger record.
func (o DoseOccurrence) IsVirtual() bool {
	return o.record == nil
}

// Record returns the ledger record and true, or false for virtual doses.
func (o DoseOccurrence) Record() (DoseRecord, bool) {
	if o.record == nil {
		return DoseRecord{}, false
	}
	return *o.record, true
}

// MedicationID returns the medication the dose belongs to.
func (o DoseOccurrence) MedicationID() string {
	return o.medicationID
}

// ScheduledTime returns the full timestamp of the dose.
func (o DoseOccurrence) ScheduledTime() time.Time {
	return o.scheduledTime
}

// Status returns the ledger status; virtual doses are implicitly pending.
func (o DoseOccurrence) Status() DoseStatus {
	if o.record == nil {
		return DoseStatusPending
	}
	return o.record.Status
}
