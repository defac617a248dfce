package cli

import (
	"tasklens/internal/format"
	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/projection"
)

// taskOut is a task record that also prints as a field/value table.
type taskOut struct {
	model.Task
	cat grouping.Catalog
}

var taskFields = []struct{ label, key string }{
	{"Title", "title"},
	{"Status", "status"},
	{"Priority", "priority"},
	{"Milestone", "milestone"},
	{"Assignees", "assignees"},
	{"Tags", "tags"},
	{"Start", "startDate"},
	{"Due", "dueDate"},
	{"Subtasks", "subtasks"},
}

func (t taskOut) Table() format.Grid {
	g := format.Grid{Headers: []string{"Field", "Value"}}
	g.Rows = append(g.Rows, []string{"ID", t.ID})
	if p := t.Parent(); p != "" {
		g.Rows = append(g.Rows, []string{"Parent", p})
	}
	for _, f := range taskFields {
		g.Rows = append(g.Rows, []string{f.label, projection.Cell(t.Task, f.key, t.cat)})
	}
	return g
}

func (r bulkResult) Table() format.Grid {
	g := format.Grid{Headers: []string{"ID", "Title", "Status", "Priority"}, Widths: []int{0, 40, 0, 0}}
	if len(r.Tasks) == 0 {
		for _, id := range r.IDs {
			g.Rows = append(g.Rows, []string{id, "(" + r.Op + ")", "", ""})
		}
		return g
	}
	for _, t := range r.Tasks {
		g.Rows = append(g.Rows, []string{t.ID, t.Title, t.Status, t.Priority})
	}
	return g
}
