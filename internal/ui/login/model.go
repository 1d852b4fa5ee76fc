// Package login is the sign-in form: API base URL and token.
package login

import (
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/medtracker/internal/theme"
)

// SubmitMsg is dispatched when the user submits credentials.
type SubmitMsg struct {
	BaseURL string
	Token   string
}

// CancelMsg is dispatched when the user aborts sign in.
type CancelMsg struct{}

type formBindings struct {
	baseURL string
	token   string
}

// Model is the Bubble Tea model for the sign-in form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	err    string
	busy   bool
	width  int
	height int
}

// New creates a sign-in form prefilled with baseURL.
func New(baseURL string, width, height int) Model {
	return Model{
		fb:     &formBindings{baseURL: baseURL},
		width:  width,
		height: height,
	}
}

// Start (re)builds the form, clearing the token field. errMsg is shown
// above the form when not empty.
func (m *Model) Start(errMsg string) tea.Cmd {
	m.fb.token = ""
	m.err = errMsg
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// SetBusy marks the form as waiting for the session check.
func (m *Model) SetBusy(busy bool) {
	m.busy = busy
}

// Update handles messages for the sign-in form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		submit := SubmitMsg{
			BaseURL: strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/"),
			Token:   strings.TrimSpace(m.fb.token),
		}
		m.busy = true
		return m, func() tea.Msg { return submit }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the sign-in form.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Sign in to medtracker")}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.busy {
		parts = append(parts, theme.DimmedStyle.Render("Checking session..."))
	} else if m.form != nil {
		parts = append(parts, m.form.View())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Placeholder("https://meds.example.com").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API token").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.token).
				Validate(validateRequired("Token")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("enter an http(s) URL")
	}
	return nil
}
