package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/medtracker/internal/theme"
)

// Name identifies a palette command.
type Name string

const (
	Refresh  Name = "refresh"
	Today    Name = "today"
	Inbox    Name = "inbox"
	Snooze   Name = "snooze"
	ReadAll  Name = "read-all"
	ClearAll Name = "clear-inbox"
	Logout   Name = "logout"
	Quit     Name = "quit"
)

// aliases maps accepted spellings to commands.
var aliases = map[string]Name{
	"refresh":     Refresh,
	"sync":        Refresh,
	"today":       Today,
	"inbox":       Inbox,
	"snooze":      Snooze,
	"read-all":    ReadAll,
	"read all":    ReadAll,
	"clear-inbox": ClearAll,
	"clear inbox": ClearAll,
	"logout":      Logout,
	"signout":     Logout,
	"quit":        Quit,
	"q":           Quit,
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Name Name

	// Minutes is set for snooze; zero means the configured default.
	Minutes int
}

// ErrorMsg is emitted when the input is not a known command.
type ErrorMsg struct {
	Err error
}

// Parse turns palette input into a command.
func Parse(input string) (CommandMsg, error) {
	input = strings.ToLower(strings.Join(strings.Fields(input), " "))
	if name, ok := aliases[input]; ok {
		return CommandMsg{Name: name}, nil
	}

	fields := strings.Fields(input)
	if len(fields) == 2 && aliases[fields[0]] == Snooze {
		mins, err := strconv.Atoi(strings.TrimSuffix(fields[1], "m"))
		if err != nil || mins <= 0 {
			return CommandMsg{}, fmt.Errorf("snooze takes a positive number of minutes, got %q", fields[1])
		}
		return CommandMsg{Name: Snooze, Minutes: mins}, nil
	}

	return CommandMsg{}, fmt.Errorf("unknown command %q", input)
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, inbox, snooze 30, read all, logout..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			parsed, err := Parse(text)
			if err != nil {
				return m, func() tea.Msg { return ErrorMsg{Err: err} }
			}
			return m, func() tea.Msg { return parsed }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	return m.input.Focus()
}
