package notifications

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/theme"
)

// Item wraps a model.NotificationItem so it can be used in a bubbles/list.
type Item struct {
	Notification model.NotificationItem
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Message }

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification

	marker := "●"
	msgStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	if n.Read {
		marker = " "
		msgStyle = theme.DimmedStyle
	}

	kind := theme.KindLabelStyle(string(n.Kind)).Width(14).Render(string(n.Kind))
	when := theme.DimmedStyle.Render(relativeTime(n.ReceivedAt, d.now()))
	line := fmt.Sprintf("%s %s %s  %s", marker, kind, msgStyle.Render(n.Message), when)

	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}

// relativeTime formats t relative to now.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
