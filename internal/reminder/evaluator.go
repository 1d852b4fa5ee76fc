// Package reminder decides which medication doses are due and which of them
// need a notification right now.
package reminder

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/clock"
	"github.com/nhle/medtracker/internal/model"
)

// Default cadences.
const (
	DefaultRepeatInterval  = 5 * time.Minute
	DefaultPollInterval    = 15 * time.Second
	DefaultCleanupInterval = time.Hour
)

// Occurrence is one scheduled time of one medication on one day.
type Occurrence struct {
	Key        Key
	Medication model.Medication

	// ScheduledTime is the normalized HH:MM dose time.
	ScheduledTime string

	// At is the full timestamp of the dose in the reference timezone.
	At time.Time

	DoseMinutes    int
	TriggerMinutes int

	Dose model.DoseOccurrence
}

// Status returns the ledger status of the occurrence.
func (o Occurrence) Status() model.DoseStatus {
	return o.Dose.Status()
}

// Fire is a decision to notify the user about an occurrence.
type Fire struct {
	Occurrence

	// Repeat is true when the key had already been notified before.
	Repeat bool
}

// Result is the outcome of one evaluation pass.
type Result struct {
	// Fires are the occurrences that need a notification now.
	Fires []Fire

	// Pending are all due, unresolved occurrences, notified this pass or not.
	Pending []Occurrence

	// Resolved are the keys the ledger reports as resolved.
	Resolved []Key
}

// Evaluator computes due reminders from a directory/ledger snapshot.
// It holds no state of its own; notification history lives in a Tracker.
type Evaluator struct {
	clock          *clock.Clock
	repeatInterval time.Duration
	logger         *zap.Logger
}

// NewEvaluator creates an Evaluator. A non-positive repeat interval uses
// DefaultRepeatInterval.
func NewEvaluator(c *clock.Clock, repeatInterval time.Duration, logger *zap.Logger) *Evaluator {
	if repeatInterval <= 0 {
		repeatInterval = DefaultRepeatInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		clock:          c,
		repeatInterval: repeatInterval,
		logger:         logger,
	}
}

// RepeatInterval returns the configured repeat cadence.
func (e *Evaluator) RepeatInterval() time.Duration {
	return e.repeatInterval
}

// Evaluate runs one pass. Resolved occurrences have their tracking cleared;
// due, unresolved occurrences are returned as pending and fire when they
// were never notified or the repeat interval has elapsed. Keys settled on
// the tracker are neither pending nor fired.
func (e *Evaluator) Evaluate(
	now clock.Reading,
	meds []model.Medication,
	doses []model.DoseRecord,
	tracker *Tracker,
) Result {
	var result Result

	for _, occ := range e.Occurrences(now.Day, meds, doses) {
		if occ.Status().Resolved() {
			tracker.Clear(occ.Key)
			result.Resolved = append(result.Resolved, occ.Key)
			continue
		}

		if now.MinutesSinceMidnight < occ.TriggerMinutes || tracker.Settled(occ.Key) {
			continue
		}

		result.Pending = append(result.Pending, occ)

		fire, repeat := tracker.decide(occ.Key, now.Time, e.repeatInterval)
		if fire {
			result.Fires = append(result.Fires, Fire{Occurrence: occ, Repeat: repeat})
		}
	}

	return result
}

// Occurrences expands the eligible medications into today's occurrences,
// pairing each with its ledger record when one exists. The result is
// ordered by dose time, then medication name.
func (e *Evaluator) Occurrences(
	day string,
	meds []model.Medication,
	doses []model.DoseRecord,
) []Occurrence {
	records := e.indexRecords(day, doses)

	var out []Occurrence
	for _, med := range meds {
		if !med.ActiveOn(day) {
			continue
		}

		lead := med.LeadMinutes
		if lead < 0 {
			lead = 0
		}

		seen := make(map[string]bool, len(med.ScheduledTimes))
		for _, raw := range med.ScheduledTimes {
			minutes, hhmm, err := clock.ParseTimeOfDay(raw)
			if err != nil {
				e.logger.Warn("skipping invalid scheduled time",
					zap.String("medication_id", med.ID),
					zap.String("scheduled_time", raw),
					zap.Error(err),
				)
				continue
			}
			if seen[hhmm] {
				continue
			}
			seen[hhmm] = true

			at, err := e.clock.At(day, hhmm)
			if err != nil {
				e.logger.Warn("building dose timestamp",
					zap.String("medication_id", med.ID),
					zap.String("day", day),
					zap.Error(err),
				)
				continue
			}

			dose := model.Virtual(med.ID, at)
			if rec, ok := records[recordKey{med.ID, hhmm}]; ok {
				dose = model.Logged(rec)
			}

			out = append(out, Occurrence{
				Key: Key{
					Day:           day,
					MedicationID:  med.ID,
					ScheduledTime: hhmm,
				},
				Medication:     med,
				ScheduledTime:  hhmm,
				At:             at,
				DoseMinutes:    minutes,
				TriggerMinutes: minutes - lead,
				Dose:           dose,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DoseMinutes != out[j].DoseMinutes {
			return out[i].DoseMinutes < out[j].DoseMinutes
		}
		return out[i].Medication.Name < out[j].Medication.Name
	})

	return out
}

type recordKey struct {
	medicationID string
	timeOfDay    string
}

// indexRecords maps today's ledger records by medication and time of day.
// If the ledger holds duplicates for a slot, a resolved record wins so a
// stray pending row cannot keep a finished dose ringing.
func (e *Evaluator) indexRecords(day string, doses []model.DoseRecord) map[recordKey]model.DoseRecord {
	idx := make(map[recordKey]model.DoseRecord, len(doses))
	for _, d := range doses {
		if e.clock.DayOf(d.ScheduledTime) != day {
			continue
		}
		k := recordKey{d.MedicationID, e.clock.TimeOfDay(d.ScheduledTime)}
		if existing, ok := idx[k]; ok && existing.Status.Resolved() {
			continue
		}
		idx[k] = d
	}
	return idx
}
