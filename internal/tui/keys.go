// ABOUTME: Key bindings for the session watch screen
// ABOUTME: Feeds bubbles/help for the footer hint line

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	StayActive key.Binding
	Logout     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		StayActive: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "stay signed in"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "sign out"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit (stay signed in)"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Logout, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.StayActive, k.Logout},
		{k.Help, k.Quit},
	}
}
