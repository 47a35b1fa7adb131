package term

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// Run starts the Bubble Tea program and blocks until the user quits, ctx is done,
// or the deck is closed.
func (d *Deck) Run(ctx context.Context) error {
	p := tea.NewProgram(NewModel(d), tea.WithAltScreen(), tea.WithContext(ctx))

	d.mu.Lock()
	d.program = p
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.program = nil
		d.mu.Unlock()
	}()

	// Keep log lines from corrupting the view.
	prevOut := logrus.StandardLogger().Out
	logrus.SetOutput(d.logOut)
	defer logrus.SetOutput(prevOut)

	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
