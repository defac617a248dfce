package engine

import (
	"context"
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"tasklens/internal/model"
)

type childrenMsg struct {
	id    string
	tasks []model.Task
	err   error
}

// needsFetch reports whether id has children on the server and none of them are
// present here. A node with some children loaded is only revealed.
func (e *Engine) needsFetch(id string) bool {
	ix := e.index()
	t, ok := ix.Task(id)
	if !ok || e.loaded[id] {
		return false
	}
	return t.SubtaskCount > 0 && !ix.HasLoadedChildren(id)
}

// childrenComplete reports whether every child of id is present locally, so its
// counts can be recomputed from the store.
func (e *Engine) childrenComplete(id string) bool {
	ix := e.index()
	t, ok := ix.Task(id)
	if !ok {
		return false
	}
	return e.loaded[id] || t.SubtaskCount <= len(ix.ChildrenOf(id))
}

func (e *Engine) fetch(id string) tea.Cmd {
	be := e.opts.Backend
	if be == nil {
		delete(e.pending, id)
		return nil
	}
	e.log.WithField("task_id", id).Debug("fetch children")
	return e.call(func(ctx context.Context) tea.Msg {
		tasks, err := be.FetchChildren(ctx, id)
		return childrenMsg{id: id, tasks: tasks, err: err}
	})
}

// Expand reveals the children of id. When they have never been loaded it issues one
// fetch; a second Expand while that fetch is pending does nothing.
func (e *Engine) Expand(id string) tea.Cmd {
	if !e.store.Has(id) {
		return nil
	}
	if e.pending[id] {
		delete(e.cancelled, id)
		return nil
	}
	if e.needsFetch(id) {
		e.pending[id] = true
		return e.fetch(id)
	}
	if e.expanded[id] || !e.index().HasChildren(id) {
		return nil
	}
	e.expanded[id] = true
	return e.scheduleSave()
}

// Collapse hides the children of id. A fetch in flight still merges its records when
// it lands but no longer expands the node.
func (e *Engine) Collapse(id string) tea.Cmd {
	if e.pending[id] {
		e.cancelled[id] = true
	}
	if !e.expanded[id] {
		return nil
	}
	delete(e.expanded, id)
	return e.scheduleSave()
}

func (e *Engine) Toggle(id string) tea.Cmd {
	if e.IsExpanded(id) || (e.pending[id] && !e.cancelled[id]) {
		return e.Collapse(id)
	}
	return e.Expand(id)
}

// ExpandAll marks every node with children expanded. It never fetches; unloaded
// children are fetched when the node is expanded explicitly.
func (e *Engine) ExpandAll() tea.Cmd {
	ix := e.index()
	changed := false
	for _, t := range ix.Tasks() {
		if ix.HasChildren(t.ID) && !e.expanded[t.ID] {
			e.expanded[t.ID] = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return e.scheduleSave()
}

func (e *Engine) CollapseAll() tea.Cmd {
	for id := range e.pending {
		e.cancelled[id] = true
	}
	if len(e.expanded) == 0 {
		return nil
	}
	e.expanded = map[string]bool{}
	return e.scheduleSave()
}

func (e *Engine) IsExpanded(id string) bool { return e.expanded[id] }

func (e *Engine) IsLoading(id string) bool { return e.pending[id] }

func (e *Engine) onChildren(msg childrenMsg) tea.Cmd {
	id := msg.id
	delete(e.pending, id)
	cancelled := e.cancelled[id]
	delete(e.cancelled, id)
	log := e.log.WithField("task_id", id)

	if !e.store.Has(id) {
		log.Debug("discarding children of a removed task")
		return nil
	}
	if msg.err != nil {
		log.WithError(msg.err).Warn("fetch children")
		e.fail("Could not load subtasks", msg.err)
		delete(e.expanded, id)
		return nil
	}

	for i := range msg.tasks {
		// Children fetched for a node belong to it even if the payload omits the link.
		if msg.tasks[i].Parent() == "" {
			msg.tasks[i].ParentID = model.StringPtr(id)
		}
	}
	e.store.Merge(msg.tasks)
	e.store.RecountChildren(id)
	e.loaded[id] = true
	log.WithField("children", len(msg.tasks)).Debug("children loaded")

	if cancelled || e.expanded[id] || !e.index().HasLoadedChildren(id) {
		return nil
	}
	e.expanded[id] = true
	return e.scheduleSave()
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, on := range m {
		if on {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
