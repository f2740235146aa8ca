package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Actions
	Accept   key.Binding
	Personal key.Binding
	Business key.Binding
	Skip     key.Binding
	Select   key.Binding
	Back     key.Binding

	// Application
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Accept: key.NewBinding(
			key.WithKeys("a", "y"),
			key.WithHelp("a/y", "accept suggestion"),
		),
		Personal: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "personal"),
		),
		Business: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "business"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s", " "),
			key.WithHelp("s/Space", "skip"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "choose category"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Personal, k.Business, k.Skip, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Accept, k.Personal, k.Business, k.Skip},
		{k.Up, k.Down, k.Select, k.Back},
		{k.Help, k.Quit},
	}
}
