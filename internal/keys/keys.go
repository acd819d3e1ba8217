package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Presence
	PunchIn  key.Binding
	BreakIn  key.Binding
	BreakOut key.Binding
	PunchOut key.Binding

	// Notifications
	Notifications key.Binding
	MarkRead      key.Binding
	MarkAllRead   key.Binding

	// Manual refresh
	Refresh key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Help toggle
	Help key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		PunchIn: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "punch in"),
		),
		BreakIn: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "break in"),
		),
		BreakOut: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "break out"),
		),
		PunchOut: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "punch out"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "notifications"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "mark all read"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.PunchIn, k.BreakIn, k.BreakOut, k.PunchOut,
		k.Notifications, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PunchIn, k.BreakIn, k.BreakOut, k.PunchOut},
		{k.Notifications, k.Up, k.Down, k.MarkRead, k.MarkAllRead},
		{k.Refresh, k.Back, k.Help, k.Quit},
	}
}
