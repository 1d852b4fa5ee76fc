// Package inbox renders the notification history and applies the inbox
// maintenance keys.
package inbox

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
	"github.com/nhle/medtracker/internal/theme"
)

// Inbox is the notification history the view edits. *notify.Inbox
// satisfies it.
type Inbox interface {
	List() []model.Notification
	MarkRead(id string) bool
	MarkAllRead()
	Remove(id string) bool
	ClearAll()
	UnreadCount() int
}

// ResolveRequestMsg asks the app to resolve the dose a reminder
// notification refers to.
type ResolveRequestMsg struct {
	Notification model.Notification
	Status       model.DoseStatus
}

// NotificationItem wraps a notification so it can be used in a bubbles/list.
type NotificationItem struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i NotificationItem) FilterValue() string { return i.Notification.Title }

// ItemDelegate implements list.ItemDelegate for notification rows.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a notification as a title line and a message line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(NotificationItem)
	if !ok {
		return
	}
	n := it.Notification

	dot := " "
	if !n.Read {
		dot = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	typ := theme.NotificationTypeStyle(string(n.Type)).Render(string(n.Type))
	age := lipgloss.NewStyle().Foreground(theme.ColorGray).Render(relativeTime(n.CreatedAt, d.now()))

	title := n.Title
	msg := "  " + n.Message
	if n.Read {
		title = theme.DimmedStyle.Render(title)
		msg = theme.DimmedStyle.Render(msg)
	} else {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}

	line := fmt.Sprintf("%s %s %s  %s\n%s", dot, typ, title, age, msg)
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// Model is the inbox view.
type Model struct {
	list   list.Model
	inbox  Inbox
	keys   *keys.KeyMap
	now    func() time.Time
	width  int
	height int
}

// New creates a new inbox view over in.
func New(in Inbox, k *keys.KeyMap, now func() time.Time, width, height int) Model {
	if now == nil {
		now = time.Now
	}
	l := list.New([]list.Item{}, ItemDelegate{now: now}, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("notification", "notifications")
	l.Styles.Title = theme.HeaderStyle

	m := Model{
		list:   l,
		inbox:  in,
		keys:   k,
		now:    now,
		width:  width,
		height: height,
	}
	m.Reload()
	return m
}

// Reload re-reads the inbox, keeping the cursor on the same entry when it
// still exists.
func (m *Model) Reload() tea.Cmd {
	var selected string
	if it, ok := m.list.SelectedItem().(NotificationItem); ok {
		selected = it.Notification.ID
	}

	ns := m.inbox.List()
	items := make([]list.Item, len(ns))
	idx := 0
	for i, n := range ns {
		items[i] = NotificationItem{Notification: n}
		if n.ID == selected {
			idx = i
		}
	}
	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		if idx >= len(items) {
			idx = len(items) - 1
		}
		m.list.Select(idx)
	}
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(NotificationItem)
	return it.Notification, ok
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the inbox view.
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
	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.Selected(); ok {
			m.inbox.MarkRead(n.ID)
			cmd := m.Reload()
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.MarkAllRead):
		m.inbox.MarkAllRead()
		cmd := m.Reload()
		return m, cmd

	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.Selected(); ok {
			idx := m.list.Index()
			m.inbox.Remove(n.ID)
			cmd := m.Reload()
			if idx < len(m.list.Items()) {
				m.list.Select(idx)
			}
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.ClearAll):
		m.inbox.ClearAll()
		cmd := m.Reload()
		return m, cmd

	case key.Matches(msg, m.keys.Take):
		return m, m.resolve(model.DoseStatusTaken)
	case key.Matches(msg, m.keys.Skip):
		return m, m.resolve(model.DoseStatusSkipped)
	case key.Matches(msg, m.keys.Miss):
		return m, m.resolve(model.DoseStatusMissed)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// resolve only applies to reminder notifications that carry a dose.
func (m Model) resolve(status model.DoseStatus) tea.Cmd {
	n, ok := m.Selected()
	if !ok || n.Type != model.NotificationTypeReminder || n.Data == nil {
		return nil
	}
	return func() tea.Msg {
		return ResolveRequestMsg{Notification: n, Status: status}
	}
}

// View renders the inbox list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.HeaderStyle.Render("Inbox"),
			theme.DimmedStyle.Render("  No notifications."),
		)
	}
	return m.list.View()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
