package term

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap defines the control bindings; face shortcuts are handled separately.
type keyMap struct {
	Quit key.Binding
	Help key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{
		key.NewBinding(key.WithKeys("1"), key.WithHelp("1-0 q-p a-l z-m", "press the labelled key")),
	}, {k.Help, k.Quit}}
}

// shortcutIndex maps a pressed key to a face index.
func shortcutIndex(s string, keys int) (int, bool) {
	if len(s) != 1 {
		return 0, false
	}
	for i := 0; i < len(shortcuts) && i < keys; i++ {
		if shortcuts[i] == s[0] {
			return i, true
		}
	}
	return 0, false
}
