package model

// DefaultLeadMinutes is how long before a dose the reminder fires when the
// medication does not say otherwise.
const DefaultLeadMinutes = 5

// Medication is a prescription the user is tracking. It is owned by the
// remote directory and treated as read-only here.
type Medication struct {
	// ID is the directory's identifier for the medication.
	ID string `json:"id"`

	// Name is the display name (e.g., "Metformin").
	Name string `json:"name"`

	// Strength is the display dosage (e.g., "500mg").
	Strength string `json:"strength"`

	// ScheduledTimes are the daily dose times as HH:MM in the reference
	// timezone. Empty means the medication never reminds.
	ScheduledTimes []string `json:"scheduled_times"`

	// LeadMinutes is how many minutes before each dose the reminder fires.
	LeadMinutes int `json:"lead_minutes"`

	// IsActive is false for paused or discontinued medications.
	IsActive bool `json:"is_active"`

	// StartDate is the first day (YYYY-MM-DD) the medication applies.
	// Empty means no lower bound.
	StartDate string `json:"start_date,omitempty"`

	// EndDate is the last day (YYYY-MM-DD) the medication applies.
	// Empty means open ended.
	EndDate string `json:"end_date,omitempty"`
}

// ActiveOn reports whether the medication is eligible for reminders on the
// given day key. Day keys compare lexically because they are zero padded.
func (m Medication) ActiveOn(day string) bool {
	if !m.IsActive {
		return false
	}
	if m.StartDate != "" && day < m.StartDate {
		return false
	}
	if m.EndDate != "" && day > m.EndDate {
		return false
	}
	return true
}

// Label returns "Name Strength", or just the name when strength is empty.
func (m Medication) Label() string {
	if m.Strength == "" {
		return m.Name
	}
	return m.Name + " " + m.Strength
}
