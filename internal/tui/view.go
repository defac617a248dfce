package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"tasklens/internal/grouping"
	"tasklens/internal/prefs"
	"tasklens/internal/projection"
	"tasklens/internal/statusutil"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	checkboxWidth = 3
	minTitleWidth = 16
)

var (
	titleBarStyle = lipgloss.NewStyle().Bold(true)
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
)

func (m *Model) View() string {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	res := m.eng.Projection()
	m.clampCursor(res.Items)

	cols := layoutColumns(m.eng.Columns().Visible(), w)
	footer := m.footer(w)
	bodyH := max(1, h-2-lipgloss.Height(footer))

	if m.cursorIdx < m.offset {
		m.offset = m.cursorIdx
	}
	if m.cursorIdx >= m.offset+bodyH {
		m.offset = m.cursorIdx - bodyH + 1
	}
	m.offset = min(max(m.offset, 0), max(0, len(res.Items)-1))

	lines := make([]string, 0, h)
	lines = append(lines, titleBarStyle.Render(xansi.Truncate(m.statusLine(res), w, "…")))
	lines = append(lines, headerStyle.Render(fit(headerLine(cols), w)))
	if !m.eng.Ready() {
		lines = append(lines, mutedStyle.Render("Loading tasks…"))
	} else if len(res.Items) == 0 {
		msg := "No tasks. Press n to create one."
		if m.eng.SearchActive() {
			msg = "No tasks match the search."
		}
		lines = append(lines, mutedStyle.Render(msg))
	}
	for i := m.offset; i < len(res.Items) && i < m.offset+bodyH; i++ {
		ln := m.renderItem(res.Items[i], cols, w)
		if i == m.cursorIdx {
			ln = cursorStyle.Render(xansi.Strip(ln))
		}
		lines = append(lines, ln)
	}
	for len(lines) < h-lipgloss.Height(footer) {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n") + "\n" + footer
}

func (m *Model) statusLine(res projection.Result) string {
	parts := []string{"tasklens", "view " + m.eng.ViewKey()}
	if g := m.eng.GroupMode(); g != grouping.ModeNone {
		parts = append(parts, "group "+string(g))
	}
	if st := m.eng.SortState(); !st.IsManual() {
		parts = append(parts, "sort "+st.String())
	}
	if q := m.eng.Query(); m.eng.SearchActive() {
		parts = append(parts, fmt.Sprintf("search %q", q))
	}
	parts = append(parts, fmt.Sprintf("%d tasks", res.TaskRows))
	if n := len(m.eng.Selected()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	if m.eng.BulkInFlight() {
		parts = append(parts, "working…")
	}
	return strings.Join(parts, " · ")
}

func (m *Model) footer(w int) string {
	var top string
	switch m.mode {
	case modeSearch:
		top = "/" + m.input.View()
	case modeEdit:
		top = "edit " + m.input.Placeholder + ": " + m.input.View()
	case modeCreate:
		top = "new task: " + m.input.View()
	case modeConfirmDelete:
		n := len(m.eng.Selected())
		if n == 0 {
			n = 1
		}
		top = fmt.Sprintf("Delete %d task(s) and their subtasks? (y/N)", n)
	default:
		if m.flash != "" {
			st := mutedStyle
			if m.flashError {
				st = errorStyle
			}
			top = st.Render(xansi.Truncate(m.flash, w, "…"))
		}
	}
	return top + "\n" + m.help.View(m.keys)
}

type layoutCol struct {
	prefs.Column
	cells int
}

// layoutColumns converts stored widths to cells. The title column takes what is left
// over, and trailing columns are dropped when the terminal is too narrow.
func layoutColumns(cols prefs.Columns, w int) []layoutCol {
	out := make([]layoutCol, 0, len(cols))
	fixed := 0
	for _, c := range cols {
		lc := layoutCol{Column: c}
		switch {
		case c.Key == "checkbox":
			lc.cells = checkboxWidth
		case c.Key != prefs.TitleColumn:
			lc.cells = projection.CellWidth(c.Width)
		}
		fixed += lc.cells + 1
		out = append(out, lc)
	}
	for fixed > w-minTitleWidth && len(out) > 2 {
		last := out[len(out)-1]
		if last.Key == prefs.TitleColumn {
			break
		}
		fixed -= last.cells + 1
		out = out[:len(out)-1]
	}
	for i := range out {
		if out[i].Key == prefs.TitleColumn {
			out[i].cells = max(minTitleWidth, w-fixed)
		}
	}
	return out
}

func headerLine(cols []layoutCol) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fit(c.Label, c.cells)
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderItem(it projection.Item, cols []layoutCol, w int) string {
	if it.Kind == projection.KindGroup {
		g := it.Group
		chev := "▾"
		if g.Collapsed {
			chev = "▸"
		}
		label := fmt.Sprintf("%s %s (%d, %d done)", chev, g.Label, g.TaskCount, g.CompletedCount)
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(g.Color)).Render(fit(label, w))
	}
	row := it.Row
	cat := m.eng.Catalog()
	parts := make([]string, len(cols))
	for i, c := range cols {
		switch c.Key {
		case "checkbox":
			box := "[ ]"
			if m.eng.IsSelected(row.Task.ID) {
				box = "[x]"
			}
			parts[i] = box
		case prefs.TitleColumn:
			parts[i] = fit(titleCell(*row), c.cells)
		case "status":
			txt := fit(row.Task.Status.Label, c.cells)
			parts[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(statusutil.StatusColor(row.Task.Status.Value))).Render(txt)
		case "priority":
			txt := fit(row.Task.Priority.Label, c.cells)
			parts[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(statusutil.PriorityColor(row.Task.Priority.Value))).Render(txt)
		default:
			parts[i] = fit(projection.Cell(row.Task, c.Key, cat), c.cells)
		}
	}
	ln := strings.Join(parts, " ")
	if statusutil.IsEndState(row.Task.Status.Value) {
		ln = doneStyle.Render(xansi.Strip(ln))
	}
	return ln
}

func titleCell(row projection.TaskRow) string {
	chev := "  "
	switch {
	case row.Loading:
		chev = "… "
	case row.HasChildren && row.Expanded:
		chev = "▾ "
	case row.HasChildren || row.Task.SubtaskCount > 0:
		chev = "▸ "
	}
	title := strings.Repeat("  ", row.Depth) + chev + row.Task.Title
	if row.Updating {
		title += " ⟳"
	}
	return title
}

// fit truncates or pads s to exactly w cells.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	s = xansi.Truncate(s, w, "…")
	if gap := w - xansi.StringWidth(s); gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s
}
