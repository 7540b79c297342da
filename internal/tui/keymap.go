package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	NextPane key.Binding
	Select   key.Binding
	Back     key.Binding

	// Routes
	Content   key.Binding
	Structure key.Binding
	Query     key.Binding

	// Layout
	SidebarShrink key.Binding
	SidebarGrow   key.Binding
	QueryShrink   key.Binding
	QueryGrow     key.Binding

	// Actions
	Run     key.Binding
	Refresh key.Binding
	Open    key.Binding
	Copy    key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		NextPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select / edit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Content: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "content"),
		),
		Structure: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "structure"),
		),
		Query: key.NewBinding(
			key.WithKeys("3", "/"),
			key.WithHelp("3,/", "query"),
		),
		SidebarShrink: key.NewBinding(
			key.WithKeys("<", "alt+left"),
			key.WithHelp("<", "narrow sidebar"),
		),
		SidebarGrow: key.NewBinding(
			key.WithKeys(">", "alt+right"),
			key.WithHelp(">", "widen sidebar"),
		),
		QueryShrink: key.NewBinding(
			key.WithKeys("-", "alt+up"),
			key.WithHelp("-", "shrink editor"),
		),
		QueryGrow: key.NewBinding(
			key.WithKeys("+", "=", "alt+down"),
			key.WithHelp("+", "grow editor"),
		),
		Run: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "run now"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open file"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy row"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextPane, k.Select, k.Back},
		{k.Content, k.Structure, k.Query, k.Run},
		{k.SidebarShrink, k.SidebarGrow, k.QueryShrink, k.QueryGrow},
		{k.Refresh, k.Open, k.Copy},
		{k.Help, k.Quit},
	}
}
