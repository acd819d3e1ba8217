package reportform

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/theme"
	"github.com/nhle/workpresence/internal/timecalc"
)

// ReportSubmitMsg is dispatched when the user submits the report.
type ReportSubmitMsg struct {
	Draft model.ReportDraft
}

// ReportCancelMsg is dispatched when the user leaves the form without
// submitting. The draft is discarded.
type ReportCancelMsg struct{}

// Recompute revalidates an edited draft and returns it with fresh hours.
type Recompute func(edit model.ReportDraft) (model.ReportDraft, error)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	description  string
	startTime    string
	endTime      string
	breakMinutes string
}

// Model is the end-of-shift report form. Hours are recomputed while the
// user types.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	draft     model.ReportDraft
	recompute Recompute
	failure   string
	width     int
	height    int
}

// New creates a report form that recomputes hours through recompute.
func New(recompute Recompute, width, height int) Model {
	return Model{
		fb:        &formBindings{},
		recompute: recompute,
		width:     width,
		height:    height,
	}
}

// Start opens the form on draft. failure is shown above the form when a
// previous submission was only partly accepted.
func (m *Model) Start(draft model.ReportDraft, failure string) tea.Cmd {
	m.draft = draft
	m.failure = failure
	m.fb.description = draft.Description
	m.fb.startTime = draft.StartTime
	m.fb.endTime = draft.EndTime
	m.fb.breakMinutes = strconv.Itoa(draft.BreakDurationMinutes)
	m.form = m.buildForm()
	return m.form.Init()
}

// Draft returns the draft as currently edited.
func (m Model) Draft() model.ReportDraft { return m.draft }

// Update handles messages for the report form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	m.refresh()

	if m.form.State == huh.StateCompleted {
		draft := m.draft
		return m, func() tea.Msg { return ReportSubmitMsg{Draft: draft} }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return ReportCancelMsg{} }
	}

	return m, cmd
}

// refresh copies the bound fields into the draft and recomputes hours.
// Fields that do not parse yet leave the previous values in place.
func (m *Model) refresh() {
	edit := m.draft
	edit.Description = m.fb.description
	edit.StartTime = strings.TrimSpace(m.fb.startTime)
	edit.EndTime = strings.TrimSpace(m.fb.endTime)
	if n, err := strconv.Atoi(strings.TrimSpace(m.fb.breakMinutes)); err == nil && n >= 0 {
		edit.BreakDurationMinutes = n
	}

	if m.recompute == nil {
		m.draft = edit
		return
	}
	if updated, err := m.recompute(edit); err == nil {
		m.draft = updated
	}
}

// View renders the report form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Daily Report " + m.draft.Date))
	b.WriteString("\n")
	if m.failure != "" {
		b.WriteString(theme.ErrorStyle.Render(m.failure))
		b.WriteString("\n\n")
	}
	b.WriteString(m.form.View())
	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render(fmt.Sprintf(
		"total %s | working %s | break %d min",
		orDash(m.draft.TotalHours), orDash(m.draft.WorkingHours), m.draft.BreakDurationMinutes,
	)))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(b.String())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("What did you work on?").
				Placeholder("Summary of the day...").
				Value(&m.fb.description).
				Validate(validateRequired("Description")),
			huh.NewInput().
				Title("Start").
				Placeholder("HH:MM").
				Value(&m.fb.startTime).
				Validate(validateClock),
			huh.NewInput().
				Title("End").
				Placeholder("HH:MM").
				Value(&m.fb.endTime).
				Validate(validateClock),
			huh.NewInput().
				Title("Break (minutes)").
				Value(&m.fb.breakMinutes).
				Validate(validateMinutes),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
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
	h := m.height - 8
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateClock(s string) error {
	if _, err := timecalc.ParseClock(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("use HH:MM")
	}
	return nil
}

func validateMinutes(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number of minutes")
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "--:--"
	}
	return s
}
