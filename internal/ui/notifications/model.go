package notifications

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/workpresence/internal/keys"
	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/theme"
)

// MarkReadMsg asks the root model to mark the item at Index read.
type MarkReadMsg struct {
	Index int
}

// MarkAllReadMsg asks the root model to mark every item read.
type MarkAllReadMsg struct{}

// CloseMsg is sent when the user leaves the notification list.
type CloseMsg struct{}

// Model is the notification feed view. Its order matches the feed, newest
// first, so list indexes are feed indexes.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{now: time.Now}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{list: l, keys: k, width: width, height: height}
}

// SetItems replaces the rendered feed, keeping the cursor where it was.
func (m *Model) SetItems(items []model.NotificationItem, unread int) tea.Cmd {
	li := make([]list.Item, len(items))
	for i, n := range items {
		li[i] = Item{Notification: n}
	}
	m.list.Title = fmt.Sprintf("Notifications (%d unread)", unread)
	idx := m.list.Index()
	cmd := m.list.SetItems(li)
	if idx < len(li) {
		m.list.Select(idx)
	}
	return cmd
}

// Update handles messages for the notification list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.MarkRead):
			if len(m.list.Items()) == 0 {
				return m, nil
			}
			idx := m.list.Index()
			return m, func() tea.Msg { return MarkReadMsg{Index: idx} }

		case key.Matches(msg, m.keys.MarkAllRead):
			return m, func() tea.Msg { return MarkAllReadMsg{} }

		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return CloseMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the notification list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return theme.DetailPanelStyle.
			Width(m.width - 4).
			Render(theme.DimmedStyle.Render("Nothing here yet."))
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
