package tui

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
)

// Spin runs action behind a spinner titled title when the printer is
// interactive, and directly otherwise. It returns the error of action.
func (p *Printer) Spin(ctx context.Context, title string, action func() error) error {
	if !p.Interactive() {
		return action()
	}
	var err error
	if serr := spinner.New().
		Context(ctx).
		Title(title).
		Action(func() { err = action() }).
		Run(); serr != nil {
		return serr
	}
	return err
}
