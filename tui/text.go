package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	textStyleColor  = lipgloss.AdaptiveColor{Light: "#36EEE0", Dark: "#00FFFF"}
	mutedStyleColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	titleStyleColor = lipgloss.AdaptiveColor{Light: "#071330", Dark: "#F652A0"}
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(titleStyleColor)
	boldStyle       = lipgloss.NewStyle().Bold(true).Foreground(textStyleColor)
	mutedStyle      = lipgloss.NewStyle().Foreground(mutedStyleColor)
)

func (p *Printer) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

func (p *Printer) Title(text string) string { return p.render(titleStyle, text) }
func (p *Printer) Bold(text string) string  { return p.render(boldStyle, text) }
func (p *Printer) Muted(text string) string { return p.render(mutedStyle, text) }

// Printf writes a formatted line.
func (p *Printer) Printf(msg string, args ...any) {
	fmt.Fprintf(p.out, msg+"\n", args...)
}

// Field writes a "label: value" line with the label styled as a title.
func (p *Printer) Field(label string, value any) {
	fmt.Fprintf(p.out, "%s %v\n", p.Title(label+":"), value)
}
