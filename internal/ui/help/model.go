package help

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workpresence/internal/keys"
	"github.com/nhle/workpresence/internal/theme"
)

// Model is the help overlay view. Besides the key bindings it lists who is
// signed in and whether desktop push is active.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	userID string
	role   string
	pushOn bool
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, userID, role string, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		userID: userID,
		role:   role,
		width:  width,
		height: height,
	}
}

// SetPush records whether a push subscription is registered.
func (m *Model) SetPush(on bool) { m.pushOn = on }

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	push := "off"
	if m.pushOn {
		push = "on"
	}
	session := theme.HelpStyle.Render(fmt.Sprintf("signed in as %s (%s) | desktop push %s", m.userID, m.role, push))

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText, "", session)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
