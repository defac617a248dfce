package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"tasklens/internal/model"
	"tasklens/internal/statusutil"
)

const (
	columnGap    = 2
	minColumnW   = 14
	cardPaddingX = 1
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
)

// Render lays the columns out side by side in width x height cells. A zero height
// means no vertical limit.
func Render(cols []Column, sel Selection, today model.Date, width, height int) string {
	n := len(cols)
	if n == 0 {
		return pad("", width, height)
	}
	sel = Clamp(cols, sel)
	colW := (width - columnGap*(n-1)) / n
	if colW < minColumnW {
		colW = minColumnW
	}
	rendered := make([]string, 0, n*2)
	for i, c := range cols {
		if i > 0 {
			rendered = append(rendered, strings.Repeat(" ", columnGap))
		}
		item := -1
		if i == sel.Col {
			item = sel.Item
		}
		rendered = append(rendered, renderColumn(c, item, today, colW, height))
	}
	return pad(lipgloss.JoinHorizontal(lipgloss.Top, rendered...), width, height)
}

func renderColumn(c Column, selected int, today model.Date, w, height int) string {
	hs := headerStyle.Foreground(lipgloss.Color(c.Color))
	lines := []string{hs.Render(xansi.Truncate(fmt.Sprintf("%s (%d)", c.Label, len(c.Cards)), w-2, "…"))}
	if len(c.Cards) == 0 {
		lines = append(lines, mutedStyle.Render(" (empty)"))
		return pad(strings.Join(lines, "\n"), w, height)
	}
	lines = append(lines, "")
	inner := w - 2*cardPaddingX
	for i, card := range c.Cards {
		for _, ln := range cardLines(card, today, inner) {
			ln = strings.Repeat(" ", cardPaddingX) + ln
			if i == selected {
				ln = selectedStyle.Render(pad(ln, w, 0))
			} else if statusutil.IsEndState(c.StatusID) {
				ln = doneStyle.Render(ln)
			}
			lines = append(lines, ln)
		}
		if i < len(c.Cards)-1 {
			lines = append(lines, mutedStyle.Render(" "+strings.Repeat("─", max(0, w-2))))
		}
	}
	return pad(strings.Join(lines, "\n"), w, height)
}

func cardLines(c Card, today model.Date, w int) []string {
	title := strings.TrimSpace(c.Task.Title)
	if title == "" {
		title = "(untitled)"
	}
	lines := wrap(title, w)
	var meta []string
	if p := c.Task.Priority.Value; p != "" && p != statusutil.PriorityNone {
		meta = append(meta, "!"+c.Task.Priority.Label)
	}
	if c.Total > 0 {
		meta = append(meta, fmt.Sprintf("%d/%d", c.Done, c.Total))
	}
	if d := c.Task.DueDate; d != nil {
		label := "due " + d.String()
		if d.Before(today) && !statusutil.IsEndState(c.Task.Status.Value) {
			label = "overdue " + d.String()
		}
		meta = append(meta, label)
	}
	for _, u := range c.Task.Assignees {
		meta = append(meta, "@"+initials(u.FullName))
	}
	if len(meta) > 0 {
		lines = append(lines, mutedStyle.Render(xansi.Truncate(strings.Join(meta, " "), w, "…")))
	}
	return lines
}

func initials(name string) string {
	var b strings.Builder
	for _, f := range strings.Fields(name) {
		b.WriteString(strings.ToUpper(string([]rune(f)[:1])))
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}

// wrap breaks s on spaces into lines no wider than w, hard-cutting long words.
func wrap(s string, w int) []string {
	if w <= 0 {
		return []string{""}
	}
	var lines []string
	cur := ""
	for _, word := range strings.Fields(s) {
		for xansi.StringWidth(word) > w {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			lines = append(lines, xansi.Cut(word, 0, w))
			word = xansi.Cut(word, w, xansi.StringWidth(word))
		}
		switch {
		case cur == "":
			cur = word
		case xansi.StringWidth(cur)+1+xansi.StringWidth(word) <= w:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, cur)
	}
	return lines
}

// pad truncates and right-pads every line to w cells and the block to h lines.
func pad(s string, w, h int) string {
	lines := strings.Split(s, "\n")
	if h > 0 && len(lines) > h {
		lines = lines[:h]
	}
	for i, ln := range lines {
		if xansi.StringWidth(ln) > w {
			ln = xansi.Truncate(ln, w, "")
		}
		if gap := w - xansi.StringWidth(ln); gap > 0 {
			ln += strings.Repeat(" ", gap)
		}
		lines[i] = ln
	}
	for h > 0 && len(lines) < h {
		lines = append(lines, strings.Repeat(" ", max(w, 0)))
	}
	return strings.Join(lines, "\n")
}
