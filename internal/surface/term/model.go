package term

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// refreshMsg asks the view to redraw after a face or brightness change.
type refreshMsg struct{}

// Model is the Bubble Tea model for the terminal deck.
type Model struct {
	deck     *Deck
	keys     keyMap
	help     help.Model
	width    int
	lastKey  int
	pressed  bool
	quitting bool
}

// NewModel constructs a Model drawing d.
func NewModel(d *Deck) Model {
	return Model{
		deck: d,
		keys: newKeyMap(),
		help: help.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) { // nolint:ireturn
	switch x := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = x.Width
		m.help.Width = x.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(x, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(x, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		if idx, ok := shortcutIndex(x.String(), m.deck.info.Keys); ok {
			m.lastKey, m.pressed = idx, true
			m.deck.press(idx)
		}
		return m, nil

	case refreshMsg:
		return m, nil
	}
	return m, nil
}
