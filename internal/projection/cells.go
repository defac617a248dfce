package projection

import (
	"fmt"
	"strings"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
)

// Cell is the plain text a table column shows for t. Unknown keys and the checkbox
// column render empty.
func Cell(t model.Task, key string, cat grouping.Catalog) string {
	switch key {
	case "title":
		return t.Title
	case "status":
		return t.Status.Label
	case "priority":
		return t.Priority.Label
	case "assignees":
		names := make([]string, 0, len(t.Assignees))
		for _, u := range t.Assignees {
			names = append(names, firstNonEmpty(u.FullName, u.ID))
		}
		return strings.Join(names, ", ")
	case "tags":
		names := make([]string, 0, len(t.Tags))
		for _, tg := range t.Tags {
			names = append(names, tg.Name)
		}
		return strings.Join(names, ", ")
	case "dueDate":
		return dateCell(t.DueDate)
	case "startDate":
		return dateCell(t.StartDate)
	case "milestone":
		if name, ok := cat.MilestoneName(t.Milestone()); ok {
			return name
		}
		return t.Milestone()
	case "subtasks":
		if t.SubtaskCount == 0 {
			return ""
		}
		return fmt.Sprintf("%d/%d", t.CompletedSubtaskCount, t.SubtaskCount)
	}
	return ""
}

// CellWidth converts a stored column width (pixels) to terminal cells.
func CellWidth(px int) int {
	if px <= 0 {
		return 0
	}
	return max(3, px/10)
}

func dateCell(d *model.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
