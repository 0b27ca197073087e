package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the dashboard.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh of every source
	Refresh key.Binding

	// Recommendation actions
	MarkRead    key.Binding
	Dismiss     key.Binding
	MarkAllRead key.Binding

	// List filter (all / unread / priority)
	CycleFilter key.Binding

	// Panels
	Alerts   key.Binding
	NewCrop  key.Binding
	Settings key.Binding

	// Alert panel
	SortAlerts key.Binding
	ToggleAll  key.Binding
	ShareAlert key.Binding
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
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open detail"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh sources"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark read"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dismiss"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "mark all read"),
		),
		CycleFilter: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "all/unread/priority"),
		),
		Alerts: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "alerts"),
		),
		NewCrop: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "register crop"),
		),
		Settings: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "weather settings"),
		),
		SortAlerts: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort date/severity"),
		),
		ToggleAll: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "include inactive"),
		),
		ShareAlert: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "share link"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.MarkRead, k.Dismiss,
		k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.MarkRead, k.Dismiss, k.MarkAllRead, k.CycleFilter, k.Search},
		{k.Refresh, k.Alerts, k.NewCrop, k.Settings, k.Command, k.Help},
		{k.SortAlerts, k.ToggleAll, k.ShareAlert},
	}
}
