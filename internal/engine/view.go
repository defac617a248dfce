package engine

import (
	tea "github.com/charmbracelet/bubbletea"

	"tasklens/internal/grouping"
	"tasklens/internal/prefs"
	"tasklens/internal/projection"
	"tasklens/internal/search"
	"tasklens/internal/sorting"
)

func (e *Engine) GroupMode() grouping.Mode { return e.group }

func (e *Engine) SortState() sorting.State { return e.sort }

func (e *Engine) Query() string { return e.query }

func (e *Engine) Columns() prefs.Columns { return append(prefs.Columns(nil), e.columns...) }

func (e *Engine) SetGroupMode(mode grouping.Mode) tea.Cmd {
	if mode == "" {
		mode = grouping.ModeNone
	}
	if mode == e.group {
		return nil
	}
	e.group = mode
	e.adjacent = nil
	return e.scheduleSave()
}

func (e *Engine) CycleGroupMode() tea.Cmd {
	return e.SetGroupMode(e.group.Next())
}

// ClickSort advances the sort state as a click on column would.
func (e *Engine) ClickSort(column string) tea.Cmd {
	return e.SetSort(e.sort.Click(column))
}

func (e *Engine) SetSort(st sorting.State) tea.Cmd {
	st = st.Normalize()
	if st == e.sort {
		return nil
	}
	e.sort = st
	e.adjacent = nil
	return e.scheduleSave()
}

// SetQuery changes the search filter. Search state is never persisted.
func (e *Engine) SetQuery(q string) {
	e.query = q
}

func (e *Engine) SearchActive() bool { return search.Active(e.query) }

func (e *Engine) IsGroupCollapsed(key string) bool {
	return e.collapsedGroups[e.group][key]
}

// ToggleGroup collapses or expands a bucket of the active grouping mode.
func (e *Engine) ToggleGroup(key string) tea.Cmd {
	set := e.collapsedGroups[e.group]
	if set == nil {
		set = map[string]bool{}
		e.collapsedGroups[e.group] = set
	}
	if set[key] {
		delete(set, key)
	} else {
		set[key] = true
	}
	return e.scheduleSave()
}

func (e *Engine) ToggleColumn(key string) (tea.Cmd, bool) {
	return e.setColumns(e.columns.Toggle(key))
}

func (e *Engine) SetColumnVisible(key string, visible bool) (tea.Cmd, bool) {
	return e.setColumns(e.columns.SetVisible(key, visible))
}

func (e *Engine) MoveColumn(from, to int) (tea.Cmd, bool) {
	return e.setColumns(e.columns.Move(from, to))
}

func (e *Engine) ResizeColumn(key string, width int) (tea.Cmd, bool) {
	return e.setColumns(e.columns.Resize(key, width))
}

func (e *Engine) ResetColumns() tea.Cmd {
	cmd, _ := e.setColumns(prefs.DefaultColumns(), true)
	return cmd
}

func (e *Engine) setColumns(cols prefs.Columns, ok bool) (tea.Cmd, bool) {
	if !ok {
		return nil, false
	}
	e.columns = cols
	return e.scheduleSave(), true
}

// ClearAdjacent drops the pinned positions of freshly created tasks so they fall back
// to their sorted place.
func (e *Engine) ClearAdjacent() {
	e.adjacent = nil
}

// Projection builds the display list for the current state. Selected ids that are no
// longer part of it are dropped from the selection.
func (e *Engine) Projection() projection.Result {
	ix := e.index()
	res := projection.Build(projection.Input{
		Index:           ix,
		GroupMode:       e.group,
		Sort:            e.sort,
		CollapsedGroups: e.collapsedGroups[e.group],
		Expanded:        e.expanded,
		Query:           e.query,
		Today:           e.today(),
		Catalog:         e.opts.Catalog.WithTaskAssignees(ix.Tasks()),
		Adjacent:        e.adjacent,
		Loading:         e.pending,
		Updating:        e.updating,
	})
	if len(e.selected) > 0 {
		visible := rowIDs(res)
		for id := range e.selected {
			if !visible[id] {
				delete(e.selected, id)
			}
		}
	}
	return res
}

func rowIDs(res projection.Result) map[string]bool {
	out := make(map[string]bool, res.TaskRows)
	for _, it := range res.Items {
		if it.Kind == projection.KindTask {
			out[it.Row.Task.ID] = true
		}
	}
	return out
}
