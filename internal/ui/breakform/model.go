package breakform

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workpresence/internal/theme"
)

// BreakReasonMsg is dispatched when the user submits a break reason.
type BreakReasonMsg struct {
	Reason string
}

// BreakFormCancelMsg is dispatched when the user cancels the form.
type BreakFormCancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	reason string
}

// Model asks for the mandatory break reason.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new break reason form model.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start resets and focuses the form.
func (m *Model) Start() tea.Cmd {
	m.fb.reason = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Reason").
				Placeholder("Lunch, meeting, errand...").
				Value(&m.fb.reason).
				Validate(validateReason),
		),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

// Update handles messages for the break form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		reason := strings.TrimSpace(m.fb.reason)
		return m, func() tea.Msg { return BreakReasonMsg{Reason: reason} }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return BreakFormCancelMsg{} }
	}

	return m, cmd
}

// View renders the break form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Start a Break") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
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

func validateReason(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a reason is required")
	}
	return nil
}
