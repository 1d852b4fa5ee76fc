// Package schedule renders today's doses grouped into overdue, upcoming and
// done sections, and turns dose keys into resolution requests.
package schedule

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/medtracker/internal/keys"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/reminder"
	"github.com/nhle/medtracker/internal/theme"
)

// ResolveRequestMsg asks the app to record a status for a dose.
type ResolveRequestMsg struct {
	Occurrence reminder.Occurrence
	Status     model.DoseStatus
}

// SnoozeRequestMsg asks the app to defer reminders for a dose.
type SnoozeRequestMsg struct {
	Key reminder.Key
}

// LogDoseMsg asks the app to open the dose form for an occurrence.
type LogDoseMsg struct {
	Occurrence reminder.Occurrence
}

// headerItem is a non-selectable section label.
type headerItem struct {
	section Section
	count   int
}

func (h headerItem) FilterValue() string { return "" }

// delegate renders both section headers and dose rows.
type delegate struct {
	ItemDelegate
}

func (d delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	if h, ok := item.(headerItem); ok {
		fmt.Fprint(w, theme.SectionStyle.UnsetMarginTop().Render(
			fmt.Sprintf("%s (%d)", h.section, h.count),
		))
		return
	}
	d.ItemDelegate.Render(w, m, index, item)
}

// Model is the today view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	now    func() time.Time
	width  int
	height int

	day       string
	stale     bool
	fetchedAt time.Time
	loaded    bool

	banner *model.Notification

	snoozedUntil func(reminder.Key) time.Time
	missAfter    time.Duration
}

// New creates a new today view. now supplies the current instant for
// relative due labels.
func New(k *keys.KeyMap, now func() time.Time, width, height int) Model {
	if now == nil {
		now = time.Now
	}
	d := delegate{ItemDelegate{now: now}}
	l := list.New([]list.Item{}, d, width, height-2)
	l.Title = "Today"
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		now:    now,
		width:  width,
		height: height,
	}
}

// SetSnoozeLookup installs the function used to show snooze deadlines.
func (m *Model) SetSnoozeLookup(fn func(reminder.Key) time.Time) {
	m.snoozedUntil = fn
}

// SetAutoMiss sets the auto-miss cutoff used for the countdown hint.
// Zero hides the countdown.
func (m *Model) SetAutoMiss(after time.Duration) {
	m.missAfter = after
}

// SetBanner sets the active reminder shown above the list. Nil hides it.
func (m *Model) SetBanner(n *model.Notification) {
	m.banner = n
}

// SetSchedule replaces the rows with a freshly built schedule. The cursor
// stays on the same dose when it is still listed.
func (m *Model) SetSchedule(s reminder.DaySchedule, stale bool, fetchedAt time.Time) tea.Cmd {
	var selected reminder.Key
	if it, ok := m.list.SelectedItem().(DoseItem); ok {
		selected = it.Occurrence.Key
	}

	m.day = s.Day
	m.stale = stale
	m.fetchedAt = fetchedAt
	m.loaded = true

	var items []list.Item
	add := func(section Section, occs []reminder.Occurrence) {
		if len(occs) == 0 {
			return
		}
		items = append(items, headerItem{section: section, count: len(occs)})
		for _, occ := range occs {
			items = append(items, m.itemFor(section, occ))
		}
	}
	add(SectionOverdue, s.Overdue)
	add(SectionUpcoming, s.Upcoming)
	add(SectionDone, s.Resolved)

	cmd := m.list.SetItems(items)

	idx := -1
	for i, it := range items {
		if d, ok := it.(DoseItem); ok {
			if idx < 0 {
				idx = i
			}
			if d.Occurrence.Key == selected {
				idx = i
				break
			}
		}
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	return cmd
}

func (m Model) itemFor(section Section, occ reminder.Occurrence) DoseItem {
	it := DoseItem{Occurrence: occ, Section: section}
	if m.snoozedUntil != nil {
		it.SnoozedUntil = m.snoozedUntil(occ.Key)
	}
	if m.missAfter > 0 && section != SectionDone {
		it.MissAt = occ.At.Add(m.missAfter)
	}
	return it
}

// Selected returns the dose under the cursor.
func (m Model) Selected() (DoseItem, bool) {
	it, ok := m.list.SelectedItem().(DoseItem)
	return it, ok
}

// Day returns the day key of the displayed schedule.
func (m Model) Day() string {
	return m.day
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the today view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Take):
		return m, m.resolve(model.DoseStatusTaken)
	case key.Matches(msg, m.keys.Skip):
		return m, m.resolve(model.DoseStatusSkipped)
	case key.Matches(msg, m.keys.Miss):
		return m, m.resolve(model.DoseStatusMissed)

	case key.Matches(msg, m.keys.Snooze):
		it, ok := m.Selected()
		if !ok || !it.Actionable() {
			return m, nil
		}
		return m, func() tea.Msg { return SnoozeRequestMsg{Key: it.Occurrence.Key} }

	case key.Matches(msg, m.keys.Select):
		it, ok := m.Selected()
		if !ok || !it.Actionable() {
			return m, nil
		}
		return m, func() tea.Msg { return LogDoseMsg{Occurrence: it.Occurrence} }

	case key.Matches(msg, m.keys.Up):
		m.list.CursorUp()
		m.skipHeader(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.list.CursorDown()
		m.skipHeader(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// skipHeader moves the cursor off a section header in direction dir. At
// the top of the list it falls forward to the first dose instead.
func (m *Model) skipHeader(dir int) {
	items := m.list.Items()
	idx := m.list.Index()
	for idx >= 0 && idx < len(items) {
		if _, ok := items[idx].(headerItem); !ok {
			m.list.Select(idx)
			return
		}
		idx += dir
	}
	if dir < 0 {
		m.skipHeader(1)
	}
}

func (m Model) resolve(status model.DoseStatus) tea.Cmd {
	it, ok := m.Selected()
	if !ok || !it.Actionable() {
		return nil
	}
	occ := it.Occurrence
	return func() tea.Msg {
		return ResolveRequestMsg{Occurrence: occ, Status: status}
	}
}

// View renders the banner, the dose list and the data freshness line.
func (m Model) View() string {
	var parts []string

	if m.banner != nil {
		parts = append(parts, theme.BannerStyle.Width(m.width).Render(
			"⏰ "+m.banner.Message,
		))
	}

	switch {
	case !m.loaded:
		parts = append(parts, theme.DimmedStyle.Render("  Loading today's schedule..."))
	case len(m.list.Items()) == 0:
		parts = append(parts, theme.DimmedStyle.Render("  No doses scheduled today."))
	default:
		parts = append(parts, m.list.View())
	}

	if m.stale {
		warn := lipgloss.NewStyle().Foreground(theme.ColorYellow)
		parts = append(parts, warn.Render(fmt.Sprintf(
			"⚠ offline: showing data from %s",
			m.fetchedAt.Format("15:04"),
		)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	listHeight := height - 2
	if m.banner != nil {
		listHeight--
	}
	if listHeight < 1 {
		listHeight = 1
	}
	m.list.SetSize(width, listHeight)
}
