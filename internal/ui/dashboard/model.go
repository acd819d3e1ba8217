package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workpresence/internal/presence"
	"github.com/nhle/workpresence/internal/theme"
)

// Model renders the presence panel. It holds only what it was last given;
// the root model feeds it a fresh snapshot and elapsed string on every tick.
type Model struct {
	snapshot  presence.Snapshot
	elapsed   string
	unread    int
	connected bool
	employee  string
	width     int
	height    int
}

// New creates a dashboard for employee.
func New(employee string, width, height int) Model {
	return Model{employee: employee, elapsed: "00:00:00", width: width, height: height}
}

// SetSnapshot replaces the rendered presence state.
func (m *Model) SetSnapshot(s presence.Snapshot) { m.snapshot = s }

// SetElapsed sets the elapsed shift time shown under the state.
func (m *Model) SetElapsed(e string) { m.elapsed = e }

// SetUnread sets the unread notification count.
func (m *Model) SetUnread(n int) { m.unread = n }

// SetConnected sets whether the realtime connection is up.
func (m *Model) SetConnected(c bool) { m.connected = c }

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the dashboard.
func (m Model) View() string {
	s := m.snapshot
	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(16)

	var rows []string
	row := func(name, value string) {
		rows = append(rows, label.Render(name)+value)
	}

	row("Employee", m.employee)
	row("Status", theme.StateStyle(s.State.String()).Render(strings.ToUpper(s.State.String())))

	if s.Record.PunchInTime != nil {
		row("Punched in at", s.Record.PunchInTime.Local().Format("15:04"))
	}
	if s.State.PunchOpen() {
		row("Elapsed", theme.ClockStyle.Render(m.elapsed))
	}
	if s.Record.BreakDurationMinutes > 0 || s.Record.IsOnBreak {
		row("Break today", fmt.Sprintf("%d min", s.Record.BreakDurationMinutes))
	}

	if s.Draft != nil {
		rows = append(rows, "")
		row("Report", fmt.Sprintf("%s to %s, working %s", s.Draft.StartTime, s.Draft.EndTime, s.Draft.WorkingHours))
		if s.ReportSaved {
			row("", theme.ErrorStyle.Render("report saved, punch-out still pending"))
		}
	}

	rows = append(rows, "")
	notif := theme.DimmedStyle.Render("no unread notifications")
	if m.unread > 0 {
		notif = theme.BadgeStyle.Render(fmt.Sprintf("%d unread", m.unread))
	}
	row("Notifications", notif)

	live := theme.DimmedStyle.Render("offline")
	if m.connected {
		live = lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("live")
	}
	row("Realtime", live)

	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return theme.DetailPanelStyle.
		Width(w).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
