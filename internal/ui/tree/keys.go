package tree

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Expand   key.Binding
	Collapse key.Binding
	Toggle   key.Binding
	Random   key.Binding
	Check    key.Binding
	Info     key.Binding
	Search   key.Binding
	Save     key.Binding
	Back     key.Binding
	Quit     key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Expand:   key.NewBinding(key.WithKeys("right", "l", "enter"), key.WithHelp("→", "open")),
		Collapse: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "close")),
		Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "enable/disable")),
		Random:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "random child")),
		Check:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "check")),
		Info:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "info")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Save:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
