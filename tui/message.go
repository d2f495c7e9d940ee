package tui

import (
	"fmt"

	"github.com/agentuity/go-cachespace/logger"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	messageOKColor      = lipgloss.AdaptiveColor{Light: "#009900", Dark: "#00FF00"}
	messageOKStyle      = lipgloss.NewStyle().Foreground(messageOKColor)
	messageTextColor    = lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	messageTextStyle    = lipgloss.NewStyle().Foreground(messageTextColor)
	messageWarningColor = lipgloss.AdaptiveColor{Light: "#990000", Dark: "#FF0000"}
	messageWarningStyle = lipgloss.NewStyle().Foreground(messageWarningColor)
)

func (p *Printer) message(icon string, iconStyle lipgloss.Style, msg string, args ...any) {
	text := fmt.Sprintf(msg, args...)
	fmt.Fprintln(p.out, p.render(iconStyle, icon)+p.render(messageTextStyle, text))
}

func (p *Printer) Success(msg string, args ...any) {
	p.message(" ✓ ", messageOKStyle, msg, args...)
}

func (p *Printer) Warning(msg string, args ...any) {
	p.message(" ✕ ", messageWarningStyle, msg, args...)
}

func (p *Printer) Error(msg string, args ...any) {
	p.message(" ⚠ ", messageWarningStyle, msg, args...)
}

// Confirm asks a yes/no question. Without a terminal it returns defaultValue.
func (p *Printer) Confirm(log logger.Logger, title string, defaultValue bool) bool {
	if !p.Interactive() {
		return defaultValue
	}
	confirm := defaultValue
	if err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes!").
		Negative("No").
		Value(&confirm).
		Inline(false).
		Run(); err != nil {
		log.Fatal("%s", err)
	}
	return confirm
}
