package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workpresence/internal/theme"
)

// Layout splits the terminal into a header line, the content area and a
// status line.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout for a width x height terminal.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentWidth returns the width of the content area.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left for content once the header and the
// status line take one each.
func (l Layout) ContentHeight() int {
	if l.Height < 2 {
		return 0
	}
	return l.Height - 2
}

// Header is what the top bar shows.
type Header struct {
	Title string

	// Connection is the realtime link state, e.g. "live" or "offline".
	Connection string

	Unread int
}

// RenderHeader renders the title on the left; the unread badge and the
// connection state sit on the right.
func (l Layout) RenderHeader(h Header) string {
	left := theme.HeaderStyle.Render(h.Title)

	var right []string
	if h.Unread > 0 {
		right = append(right, theme.BadgeStyle.Render(fmt.Sprintf("%d unread", h.Unread)))
	}
	right = append(right, theme.HeaderStyle.Render(h.Connection))

	return spread(theme.HeaderStyle, l.Width, left, lipgloss.JoinHorizontal(lipgloss.Top, right...))
}

// Status is what the bottom line shows.
type Status struct {
	// State is the presence state name, rendered as a colored chip.
	State string

	// Elapsed is shown next to the chip while a punch is open.
	Elapsed string

	Hints string

	// Message replaces the hints and is shown in the error style.
	Message string
}

// RenderStatusBar renders the presence chip and the hints or message on the
// left, and the elapsed time on the right.
func (l Layout) RenderStatusBar(s Status) string {
	bg := theme.StatusBarStyle.GetBackground()

	var left []string
	if s.State != "" {
		left = append(left, theme.StateStyle(s.State).Background(bg).Render(strings.ToUpper(s.State)))
	}
	if s.Message != "" {
		left = append(left, theme.ErrorStyle.Background(bg).Padding(0, 1).Render(s.Message))
	} else {
		left = append(left, theme.StatusBarStyle.Render(s.Hints))
	}

	right := ""
	if s.Elapsed != "" {
		right = theme.ClockStyle.Background(bg).Padding(0, 1).Render(s.Elapsed)
	}

	return spread(theme.StatusBarStyle, l.Width, lipgloss.JoinHorizontal(lipgloss.Top, left...), right)
}

// spread places left and right at the two ends of a width-wide line and
// fills the gap with the background of style.
func spread(style lipgloss.Style, width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
