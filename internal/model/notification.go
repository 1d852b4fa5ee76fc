package model

import "time"

// NotificationType classifies inbox entries.
type NotificationType string

const (
	NotificationTypeReminder     NotificationType = "reminder"
	NotificationTypeDoseResolved NotificationType = "dose_resolved"
	NotificationTypeSystem       NotificationType = "system"
)

// ReminderData carries enough information on a reminder notification to
// resolve the dose it refers to later.
type ReminderData struct {
	MedicationID string `json:"medication_id"`

	// Day is the reference-timezone calendar date of the dose.
	Day string `json:"day"`

	// DoseTime is the scheduled time of day (HH:MM).
	DoseTime string `json:"dose_time"`

	// DoseID is set when the dose already had a ledger record.
	DoseID string `json:"dose_id,omitempty"`
}

// Notification represents an alert surfaced to the user in the inbox.
type Notification struct {
	// ID is locally unique and increases with creation time.
	ID string `json:"id"`

	// Type identifies what produced this notification.
	Type NotificationType `json:"type"`

	// Title is the short heading shown in lists and desktop popups.
	Title string `json:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at"`

	// Data is set for reminder notifications.
	Data *ReminderData `json:"data,omitempty"`
}
