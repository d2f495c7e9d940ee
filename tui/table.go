package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	tableBorderColor = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"}
	tableBorderStyle = lipgloss.NewStyle().Foreground(tableBorderColor)
)

// Table writes rows under headers. Without styling each row is written as tab
// separated values so the output stays easy to pipe.
func (p *Printer) Table(headers []string, rows [][]string) {
	if !p.styled {
		for _, row := range rows {
			for i, col := range row {
				if i > 0 {
					fmt.Fprint(p.out, "\t")
				}
				fmt.Fprint(p.out, col)
			}
			fmt.Fprintln(p.out)
		}
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.out, t.String())
}
