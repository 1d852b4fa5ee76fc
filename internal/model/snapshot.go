package model

import "time"

// Snapshot is the last directory and ledger state fetched for a day.
// It backs the schedule view while the API is unreachable.
type Snapshot struct {
	Day         string       `json:"day"`
	Medications []Medication `json:"medications"`
	Doses       []DoseRecord `json:"doses"`
	FetchedAt   time.Time    `json:"fetched_at"`
}
