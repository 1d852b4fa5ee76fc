// Package doseform is the form for recording a dose with a status and
// optional notes.
package doseform

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/reminder"
	"github.com/nhle/medtracker/internal/theme"
)

// maxNotesLen caps the free-text notes sent to the ledger.
const maxNotesLen = 500

// SubmitMsg is dispatched when the user confirms the form.
type SubmitMsg struct {
	Occurrence reminder.Occurrence
	Status     model.DoseStatus
	Notes      string
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	status model.DoseStatus
	notes  string
}

// Model is the Bubble Tea model for the dose form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	occ    reminder.Occurrence
	width  int
	height int
}

// New creates a new dose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{status: model.DoseStatusTaken},
		width:  width,
		height: height,
	}
}

// Start initializes the form for occ.
func (m *Model) Start(occ reminder.Occurrence) tea.Cmd {
	m.occ = occ
	m.fb.status = model.DoseStatusTaken
	m.fb.notes = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Occurrence returns the dose the form is editing.
func (m Model) Occurrence() reminder.Occurrence {
	return m.occ
}

// Update handles messages for the dose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the dose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := fmt.Sprintf("Log dose: %s at %s", m.label(), m.occ.ScheduledTime)
	content := titleStyle.Render(title) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) label() string {
	if l := m.occ.Medication.Label(); l != "" {
		return l
	}
	return m.occ.Key.MedicationID
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[model.DoseStatus]().
				Title("Status").
				Options(
					huh.NewOption("Taken", model.DoseStatusTaken),
					huh.NewOption("Skipped", model.DoseStatusSkipped),
					huh.NewOption("Missed", model.DoseStatusMissed),
				).
				Value(&m.fb.status),
			huh.NewText().
				Title("Notes").
				Placeholder("Optional, e.g. taken with food").
				CharLimit(maxNotesLen).
				Value(&m.fb.notes),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	msg := SubmitMsg{
		Occurrence: m.occ,
		Status:     m.fb.status,
		Notes:      m.fb.notes,
	}
	return func() tea.Msg { return msg }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
