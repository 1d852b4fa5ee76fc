package api

import (
	"strings"
	"time"

	"github.com/nhle/medtracker/internal/model"
)

// Medication is the wire form of a medication.
type Medication struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Strength       string   `json:"strength"`
	ScheduledTimes []string `json:"scheduledTimes"`

	// LeadMinutes is a pointer so an absent field can take the default.
	LeadMinutes *int `json:"leadMinutes"`

	IsActive  bool   `json:"isActive"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
}

// DoseRecord is the wire form of a dose ledger entry.
type DoseRecord struct {
	ID            string           `json:"id"`
	MedicationID  string           `json:"medicationId"`
	ScheduledTime time.Time        `json:"scheduledTime"`
	Status        model.DoseStatus `json:"status"`
	Notes         string           `json:"notes,omitempty"`
	TakenAt       *time.Time       `json:"takenAt,omitempty"`
}

// CreateDoseRequest is the body of POST /api/doses.
type CreateDoseRequest struct {
	MedicationID  string           `json:"medicationId"`
	ScheduledTime time.Time        `json:"scheduledTime"`
	Status        model.DoseStatus `json:"status"`
	Notes         string           `json:"notes,omitempty"`
}

// UpdateDoseRequest is the body of PATCH /api/doses/{id}.
type UpdateDoseRequest struct {
	Status model.DoseStatus `json:"status"`
	Notes  string           `json:"notes,omitempty"`
}

// User is the signed-in account returned by GET /api/auth/me.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// errorBody is the JSON error envelope returned by the API.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// toModel converts the wire medication. Dates may arrive as plain days or
// as full timestamps; both are reduced to day keys in loc.
func (m Medication) toModel(loc *time.Location, defaultLead int) model.Medication {
	lead := defaultLead
	if m.LeadMinutes != nil {
		lead = *m.LeadMinutes
	}
	return model.Medication{
		ID:             m.ID,
		Name:           m.Name,
		Strength:       m.Strength,
		ScheduledTimes: m.ScheduledTimes,
		LeadMinutes:    lead,
		IsActive:       m.IsActive,
		StartDate:      dayKey(m.StartDate, loc),
		EndDate:        dayKey(m.EndDate, loc),
	}
}

func (d DoseRecord) toModel() model.DoseRecord {
	return model.DoseRecord{
		ID:            d.ID,
		MedicationID:  d.MedicationID,
		ScheduledTime: d.ScheduledTime,
		Status:        d.Status,
		Notes:         d.Notes,
		TakenAt:       d.TakenAt,
	}
}

// dayKey normalizes a date string to YYYY-MM-DD. Unparseable input is
// returned trimmed, so a malformed bound still compares deterministically.
func dayKey(s string, loc *time.Location) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc).Format("2006-01-02")
	}
	if len(s) >= 10 {
		if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return s[:10]
		}
	}
	return s
}
