// Package board is a kanban view of the root tasks, one column per status. It keeps
// its own copy of the records and stays in sync by absorbing the same change events
// the table view publishes.
package board

import (
	"slices"
	"strings"

	"tasklens/internal/events"
	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/statusutil"
	"tasklens/internal/taskstore"
)

const otherColumn = "(other)"

type Card struct {
	Task model.Task
	Done int
	// Total is the number of direct subtasks.
	Total int
}

type Column struct {
	StatusID string
	Label    string
	Color    string
	Cards    []Card
}

type Board struct {
	store *taskstore.Store
	cat   grouping.Catalog
	// Source is skipped when absorbing events, like the engine it sits next to.
	source string
}

func New(tasks []model.Task, cat grouping.Catalog, source string) *Board {
	st := taskstore.New()
	for _, t := range tasks {
		if t.Parent() == "" {
			st.Upsert(t)
		}
	}
	return &Board{store: st, cat: cat, source: source}
}

func (b *Board) Len() int { return b.store.Len() }

func (b *Board) Task(id string) (model.Task, bool) { return b.store.Get(id) }

// Columns returns the fixed status columns in table order. Cards with a status the
// table does not know land in a trailing "(other)" column, shown only when non-empty.
func (b *Board) Columns() []Column {
	defs := statusutil.Statuses()
	cols := make([]Column, 0, len(defs)+1)
	at := map[string]int{}
	for _, d := range defs {
		at[d.ID] = len(cols)
		cols = append(cols, Column{StatusID: d.ID, Label: d.Label, Color: d.Color})
	}
	var other Column
	tasks := b.store.All()
	slices.SortStableFunc(tasks, taskstore.ComparePosition)
	for _, t := range tasks {
		c := Card{Task: t, Done: t.CompletedSubtaskCount, Total: t.SubtaskCount}
		if i, ok := at[t.Status.Value]; ok {
			cols[i].Cards = append(cols[i].Cards, c)
			continue
		}
		other.Cards = append(other.Cards, c)
	}
	if len(other.Cards) > 0 {
		other.Label = otherColumn
		other.Color = "#6b7280"
		cols = append(cols, other)
	}
	return cols
}

// Apply absorbs one change event and reports whether the board changed.
func (b *Board) Apply(ev events.Event) bool {
	if ev.Source != "" && ev.Source == b.source {
		return false
	}
	switch ev.Type {
	case events.TaskChanged:
		if !b.store.Has(ev.TaskID) {
			return false
		}
		if ev.Field == events.FieldAssignees {
			users := append([]model.UserRef(nil), ev.Assignees...)
			return b.store.Update(ev.TaskID, func(t *model.Task) { t.Assignees = users })
		}
		f, err := mutate.ParseField(ev.Field)
		if err != nil {
			return false
		}
		ok := true
		b.store.Update(ev.TaskID, func(t *model.Task) {
			if _, err := mutate.Apply(t, f, ev.Value, b.cat); err != nil {
				ok = false
				return
			}
			mutate.SetLabel(t, f, ev.Label)
		})
		return ok
	case events.TaskDeleted:
		return len(b.store.Remove(ev.TaskIDs...)) > 0
	}
	return false
}

// Selection tracks the focused card by id so it survives a card changing column.
type Selection struct {
	Col    int
	Item   int
	TaskID string
}

func indexOf(cols []Column, id string) (int, int, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, 0, false
	}
	for ci := range cols {
		for ii := range cols[ci].Cards {
			if cols[ci].Cards[ii].Task.ID == id {
				return ci, ii, true
			}
		}
	}
	return 0, 0, false
}

// Clamp resolves sel against cols, preferring the tracked id.
func Clamp(cols []Column, sel Selection) Selection {
	if len(cols) == 0 {
		return Selection{Item: -1}
	}
	if ci, ii, ok := indexOf(cols, sel.TaskID); ok {
		sel.Col, sel.Item = ci, ii
	} else {
		sel.TaskID = ""
	}
	sel.Col = min(max(sel.Col, 0), len(cols)-1)
	n := len(cols[sel.Col].Cards)
	if n == 0 {
		sel.Item = -1
		return sel
	}
	sel.Item = min(max(sel.Item, 0), n-1)
	sel.TaskID = cols[sel.Col].Cards[sel.Item].Task.ID
	return sel
}

// Selected returns the card under sel, if any.
func Selected(cols []Column, sel Selection) (Card, bool) {
	sel = Clamp(cols, sel)
	if sel.Item < 0 {
		return Card{}, false
	}
	return cols[sel.Col].Cards[sel.Item], true
}
