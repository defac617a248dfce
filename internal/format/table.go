package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// Grid is a plain table: a header row and cells. Widths cap each column; zero means
// the column is as wide as its widest cell.
type Grid struct {
	Headers []string
	Widths  []int
	Rows    [][]string
	// Styles optionally colors individual cells, keyed by row then column.
	Styles map[int]map[int]lipgloss.Style
}

var headerCell = lipgloss.NewStyle().Bold(true).Underline(true)

// WriteGrid renders g with columns separated by two spaces. Cells are truncated with
// an ellipsis when a width cap applies.
func WriteGrid(w io.Writer, g Grid) error {
	widths := make([]int, len(g.Headers))
	for i, h := range g.Headers {
		widths[i] = xansi.StringWidth(h)
	}
	for _, row := range g.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], xansi.StringWidth(cell))
			}
		}
	}
	for i := range widths {
		if i < len(g.Widths) && g.Widths[i] > 0 {
			widths[i] = min(widths[i], g.Widths[i])
		}
	}

	line := func(cells []string, style func(col int) (lipgloss.Style, bool)) string {
		parts := make([]string, len(widths))
		for i, width := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			cell = xansi.Truncate(cell, width, "…")
			if gap := width - xansi.StringWidth(cell); gap > 0 && i < len(widths)-1 {
				cell += strings.Repeat(" ", gap)
			}
			if st, ok := style(i); ok {
				cell = st.Render(cell)
			}
			parts[i] = cell
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	if _, err := fmt.Fprintln(w, line(g.Headers, func(int) (lipgloss.Style, bool) { return headerCell, true })); err != nil {
		return err
	}
	for r, row := range g.Rows {
		styles := g.Styles[r]
		out := line(row, func(c int) (lipgloss.Style, bool) {
			st, ok := styles[c]
			return st, ok
		})
		if _, err := fmt.Fprintln(w, out); err != nil {
			return err
		}
	}
	return nil
}
