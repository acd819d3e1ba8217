package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workpresence/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Commands understood by the root model.
const (
	CmdPunchIn       = "punch in"
	CmdBreakIn       = "break in"
	CmdBreakOut      = "break out"
	CmdPunchOut      = "punch out"
	CmdRefresh       = "refresh"
	CmdNotifications = "notifications"
	CmdReadAll       = "read all"
	CmdUnsubscribe   = "unsubscribe push"
	CmdQuit          = "quit"
)

// Known lists every command, in the order they are suggested.
var Known = []string{
	CmdPunchIn, CmdBreakIn, CmdBreakOut, CmdPunchOut,
	CmdRefresh, CmdNotifications, CmdReadAll, CmdUnsubscribe, CmdQuit,
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
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Known)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			cmd := Normalize(m.input.Value())
			m.input.Reset()
			if cmd != "" {
				return m, func() tea.Msg {
					return CommandMsg(cmd)
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Normalize lowercases a command and collapses inner whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()
	hint := theme.HelpStyle.Render("tab completes: " + strings.Join(Known, ", "))

	content := lipgloss.JoinVertical(lipgloss.Left, title, input, hint)

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
	return m.input.Focus()
}
