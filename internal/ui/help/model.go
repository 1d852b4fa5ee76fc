// Package help renders the keyboard reference, grouped by the view the
// keys act on.
package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/medtracker/internal/keys"
	"github.com/nhle/medtracker/internal/theme"
)

// section is one titled group of bindings.
type section struct {
	title    string
	bindings []key.Binding
}

// Model is the help overlay view.
type Model struct {
	keys    *keys.KeyMap
	help    help.Model
	context string
	width   int
	height  int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view. The overlay is static.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetContext names the view the overlay was opened from. Its keys are
// listed first.
func (m *Model) SetContext(view string) {
	m.context = strings.ToLower(view)
}

// sections orders the key groups so the opening view comes first.
func (m Model) sections() []section {
	k := m.keys
	today := section{"Today", []key.Binding{k.Take, k.Skip, k.Miss, k.Snooze, k.Select}}
	inbox := section{"Inbox", []key.Binding{k.MarkRead, k.MarkAllRead, k.Delete, k.ClearAll, k.Take, k.Skip, k.Miss}}
	general := section{"General", []key.Binding{
		k.Up, k.Down, k.Today, k.Inbox, k.Refresh, k.Command, k.Help, k.Back, k.Logout, k.Quit,
	}}

	if m.context == "inbox" {
		return []section{inbox, today, general}
	}
	return []section{today, inbox, general}
}

// View renders the help overlay.
func (m Model) View() string {
	title := "Keyboard Shortcuts"
	if m.context != "" {
		title += " (" + m.context + ")"
	}

	blocks := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(title),
	}

	h := m.help
	h.Width = m.width - 8
	for _, s := range m.sections() {
		blocks = append(blocks,
			"",
			theme.SectionStyle.Render(s.title),
			h.FullHelpView([][]key.Binding{s.bindings}),
		)
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
