package schedule

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/medtracker/internal/reminder"
	"github.com/nhle/medtracker/internal/theme"
)

// Section is the schedule group a dose belongs to.
type Section int

const (
	SectionOverdue Section = iota
	SectionUpcoming
	SectionDone
)

func (s Section) String() string {
	switch s {
	case SectionOverdue:
		return "Overdue"
	case SectionUpcoming:
		return "Upcoming"
	default:
		return "Done"
	}
}

// DoseItem wraps an occurrence so it can be used in a bubbles/list.
type DoseItem struct {
	Occurrence reminder.Occurrence
	Section    Section

	// SnoozedUntil is set while reminders for the dose are deferred.
	SnoozedUntil time.Time

	// MissAt is when the dose will be marked missed automatically.
	MissAt time.Time
}

// FilterValue returns the string used for fuzzy filtering.
func (i DoseItem) FilterValue() string { return i.Occurrence.Medication.Name }

// Actionable reports whether the dose can still be resolved or snoozed.
func (i DoseItem) Actionable() bool { return i.Section != SectionDone }

// statusLabel is the badge shown for the dose: the ledger status for
// resolved doses, OVERDUE or PENDING otherwise.
func (i DoseItem) statusLabel() string {
	if i.Section == SectionOverdue {
		return "OVERDUE"
	}
	return i.Occurrence.Status().String()
}

// ItemDelegate implements list.ItemDelegate for dose rows.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single dose line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(DoseItem)
	if !ok {
		return
	}
	fmt.Fprint(w, d.renderLine(it, index == m.Index()))
}

func (d ItemDelegate) renderLine(it DoseItem, isSelected bool) string {
	occ := it.Occurrence

	prefix := "○"
	if it.Section == SectionDone {
		prefix = "✓"
	}

	label := it.statusLabel()
	badge := theme.DoseStatusStyle(label).Render(label)

	name := occ.Medication.Label()
	if name == "" {
		name = occ.Key.MedicationID
	}

	line := fmt.Sprintf("%s %s %s %s", prefix, occ.ScheduledTime, badge, name)

	if it.Actionable() {
		now := d.now()
		hint := lipgloss.NewStyle().Foreground(theme.ColorGray)
		line += "  " + hint.Render(dueLabel(occ.At, now))

		if !it.SnoozedUntil.IsZero() && it.SnoozedUntil.After(now) {
			line += hint.Render(" · snoozed until " + it.SnoozedUntil.In(occ.At.Location()).Format("15:04"))
		}
		if !it.MissAt.IsZero() && it.MissAt.After(now) {
			line += hint.Render(" · missed in " + shortDuration(it.MissAt.Sub(now)))
		}
	} else {
		line = theme.DimmedStyle.Render(line)
	}

	if isSelected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// dueLabel describes a dose time relative to now.
func dueLabel(at, now time.Time) string {
	d := at.Sub(now)
	switch {
	case d > -time.Minute && d < time.Minute:
		return "due now"
	case d > 0:
		return "in " + shortDuration(d)
	default:
		return shortDuration(-d) + " ago"
	}
}

// shortDuration renders d as "45m" or "2h05m", rounded down to the minute.
func shortDuration(d time.Duration) string {
	mins := int(d / time.Minute)
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dh%02dm", mins/60, mins%60)
}
