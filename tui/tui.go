// Package tui renders the output of the cachespace command line.
package tui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

var (
	HasTTY = isatty.IsTerminal(os.Stdout.Fd())
)

// Printer writes styled output to a writer. Styling is dropped when the writer
// is not the terminal.
type Printer struct {
	out    io.Writer
	styled bool
}

// NewPrinter returns a Printer writing to out. Output is styled only when out is
// os.Stdout attached to a terminal.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, styled: out == os.Stdout && HasTTY}
}

// Interactive reports whether the printer may prompt the user.
func (p *Printer) Interactive() bool {
	return p.styled
}
