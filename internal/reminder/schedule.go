package reminder

import (
	"github.com/nhle/medtracker/internal/clock"
	"github.com/nhle/medtracker/internal/model"
)

// DaySchedule groups today's occurrences for display.
type DaySchedule struct {
	Day string

	// Overdue are unresolved doses whose scheduled time has passed.
	Overdue []Occurrence

	// Upcoming are unresolved doses still ahead (or exactly now).
	Upcoming []Occurrence

	// Resolved are doses already taken, skipped or missed.
	Resolved []Occurrence
}

// Total returns the number of occurrences in the schedule.
func (s DaySchedule) Total() int {
	return len(s.Overdue) + len(s.Upcoming) + len(s.Resolved)
}

// BuildSchedule categorizes every occurrence of the day by comparing its
// scheduled time to now. Lead times play no part here.
func (e *Evaluator) BuildSchedule(
	now clock.Reading,
	meds []model.Medication,
	doses []model.DoseRecord,
) DaySchedule {
	schedule := DaySchedule{Day: now.Day}

	for _, occ := range e.Occurrences(now.Day, meds, doses) {
		switch {
		case occ.Status().Resolved():
			schedule.Resolved = append(schedule.Resolved, occ)
		case occ.DoseMinutes < now.MinutesSinceMidnight:
			schedule.Overdue = append(schedule.Overdue, occ)
		default:
			schedule.Upcoming = append(schedule.Upcoming, occ)
		}
	}

	return schedule
}
