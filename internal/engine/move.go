package engine

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/taskstore"
)

// DropPosition says where a moved task lands relative to its target.
type DropPosition string

const (
	DropBefore DropPosition = "before"
	DropAfter  DropPosition = "after"
	DropChild  DropPosition = "child"
)

func ParseDropPosition(s string) (DropPosition, error) {
	switch DropPosition(s) {
	case DropBefore, DropAfter, DropChild:
		return DropPosition(s), nil
	}
	return "", fmt.Errorf("%w: unknown drop position %q", ErrInvalidMove, s)
}

type reorderMsg struct {
	ids []string
	err error
}

type changeParentMsg struct {
	id        string
	oldParent string
	newParent string
	task      model.Task
	pos       *float64
	// reveal expands the new parent once the move lands.
	reveal bool
	verb   string
	err    error
}

func invalidMove(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMove, reason)
}

// height is the number of levels below id, counting children that are only known
// from the server-side count.
func height(ix *taskstore.Index, id string) int {
	h := ix.SubtreeHeight(id)
	if t, ok := ix.Task(id); ok && h == 0 && t.SubtaskCount > 0 {
		h = 1
	}
	return h
}

// ValidateMove reports why id cannot be dropped at pos relative to targetID, or nil.
func (e *Engine) ValidateMove(id, targetID string, pos DropPosition) error {
	if !e.sort.IsManual() {
		return invalidMove("tasks can only be reordered while sorted by position")
	}
	ix := e.index()
	dragged, ok := ix.Task(id)
	if !ok {
		return mutate.NotFoundError{Kind: "task", ID: id}
	}
	target, ok := ix.Task(targetID)
	if !ok {
		return mutate.NotFoundError{Kind: "task", ID: targetID}
	}
	if id == targetID {
		return invalidMove("a task cannot be dropped on itself")
	}
	if ix.IsDescendant(targetID, id) {
		return invalidMove("a task cannot be dropped into its own subtasks")
	}
	switch pos {
	case DropChild:
		depth := ix.Depth(targetID)
		if depth >= taskstore.MaxDepth || depth+1+height(ix, id) > taskstore.MaxDepth {
			return ErrMaxDepth
		}
		if dragged.Milestone() != target.Milestone() {
			return invalidMove("subtasks must share their parent's milestone")
		}
	case DropBefore, DropAfter:
		if !ix.IsRoot(id) {
			if dragged.Parent() != target.Parent() {
				return invalidMove("subtasks can only be reordered among their siblings")
			}
			return nil
		}
		if !ix.IsRoot(targetID) {
			return invalidMove("a root task can only be reordered among root tasks")
		}
		if e.group != grouping.ModeNone {
			today := e.today()
			if grouping.Key(dragged, e.group, today) != grouping.Key(target, e.group, today) {
				return invalidMove("tasks can only be reordered within their group")
			}
		}
	default:
		return invalidMove(fmt.Sprintf("unknown drop position %q", pos))
	}
	return nil
}

// Move drops id before, after or into targetID. Reordering sends the full new order of
// the affected siblings; dropping into a task re-parents id.
func (e *Engine) Move(id, targetID string, pos DropPosition) (tea.Cmd, error) {
	if err := e.ValidateMove(id, targetID, pos); err != nil {
		return nil, err
	}
	be := e.opts.Backend
	if be == nil {
		return nil, ErrNotReady
	}
	if e.updating[id] {
		return nil, ErrTaskUpdating
	}
	if pos == DropChild {
		return e.changeParent(id, targetID, nil, true, "moved"), nil
	}

	ix := e.index()
	dragged, _ := ix.Task(id)
	var siblings []string
	if ix.IsRoot(id) {
		today := e.today()
		key := grouping.Key(dragged, e.group, today)
		for _, rid := range ix.Roots() {
			t, _ := ix.Task(rid)
			if e.group == grouping.ModeNone || grouping.Key(t, e.group, today) == key {
				siblings = append(siblings, rid)
			}
		}
	} else {
		siblings = ix.ChildrenOf(dragged.Parent())
	}
	ids := make([]string, 0, len(siblings))
	for _, sid := range siblings {
		if sid != id {
			ids = append(ids, sid)
		}
	}
	at := indexOf(ids, targetID)
	if at < 0 {
		return nil, invalidMove("target is not a sibling")
	}
	if pos == DropAfter {
		at++
	}
	ids = append(ids[:at], append([]string{id}, ids[at:]...)...)

	e.log.WithField("task_id", id).WithField("siblings", len(ids)).Debug("reorder")
	return e.call(func(ctx context.Context) tea.Msg {
		return reorderMsg{ids: ids, err: be.Reorder(ctx, ids)}
	}), nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func (e *Engine) onReorder(msg reorderMsg) tea.Cmd {
	if msg.err != nil {
		e.log.WithError(msg.err).Warn("reorder")
		e.fail("Reorder failed", msg.err)
		return nil
	}
	for i, id := range msg.ids {
		pos := float64(i)
		e.store.Update(id, func(p *model.Task) { p.Position = pos })
	}
	e.adjacent = nil
	e.notify(LevelInfo, "Reordered", "Task order updated", nil)
	return nil
}

func (e *Engine) CanPromote(id string) bool {
	return !e.index().IsRoot(id) && e.store.Has(id)
}

// Promote moves id up one level, right after its current parent.
func (e *Engine) Promote(id string) (tea.Cmd, error) {
	if !e.CanPromote(id) {
		return nil, invalidMove("only subtasks can be promoted")
	}
	if e.updating[id] {
		return nil, ErrTaskUpdating
	}
	if e.opts.Backend == nil {
		return nil, ErrNotReady
	}
	ix := e.index()
	t, _ := ix.Task(id)
	parent, _ := ix.Task(t.Parent())
	pos := parent.Position + 0.5
	return e.changeParent(id, parent.Parent(), &pos, false, "promoted"), nil
}

// siblingAbove is the sibling directly before id in position order.
func (e *Engine) siblingAbove(id string) (string, bool) {
	sibs := e.index().Siblings(id)
	i := indexOf(sibs, id)
	if i <= 0 {
		return "", false
	}
	return sibs[i-1], true
}

func (e *Engine) CanDemote(id string) bool {
	ix := e.index()
	if _, ok := ix.Task(id); !ok || ix.Depth(id) >= taskstore.MaxDepth {
		return false
	}
	above, ok := e.siblingAbove(id)
	if !ok {
		return false
	}
	return ix.Depth(above)+1+height(ix, id) <= taskstore.MaxDepth
}

// Demote makes id a subtask of the sibling above it.
func (e *Engine) Demote(id string) (tea.Cmd, error) {
	if !e.CanDemote(id) {
		return nil, invalidMove("task has no sibling above it or would nest too deep")
	}
	if e.updating[id] {
		return nil, ErrTaskUpdating
	}
	if e.opts.Backend == nil {
		return nil, ErrNotReady
	}
	above, _ := e.siblingAbove(id)
	return e.changeParent(id, above, nil, true, "demoted"), nil
}

func (e *Engine) changeParent(id, newParent string, pos *float64, reveal bool, verb string) tea.Cmd {
	be := e.opts.Backend
	t, _ := e.store.Get(id)
	oldParent := t.Parent()
	var parentID *string
	if newParent != "" {
		parentID = model.StringPtr(newParent)
	}
	e.updating[id] = true
	return e.call(func(ctx context.Context) tea.Msg {
		moved, err := be.ChangeParent(ctx, id, parentID, pos)
		return changeParentMsg{id: id, oldParent: oldParent, newParent: newParent, task: moved, pos: pos, reveal: reveal, verb: verb, err: err}
	})
}

func (e *Engine) onChangeParent(msg changeParentMsg) tea.Cmd {
	delete(e.updating, msg.id)
	if !e.store.Has(msg.id) {
		return nil
	}
	if msg.err != nil {
		e.log.WithError(msg.err).WithField("task_id", msg.id).Warn("change parent")
		e.fail("Move failed", msg.err)
		return nil
	}
	fetchFirst := msg.newParent != "" && e.needsFetch(msg.newParent)
	complete := msg.newParent == "" || e.childrenComplete(msg.newParent)
	e.store.Update(msg.id, func(p *model.Task) {
		p.ParentID = nil
		if msg.newParent != "" {
			p.ParentID = model.StringPtr(msg.newParent)
		}
		switch {
		case msg.task.ID == msg.id:
			p.Position = msg.task.Position
		case msg.pos != nil:
			p.Position = *msg.pos
		}
	})
	if msg.oldParent != "" {
		e.store.RecountChildren(msg.oldParent)
	}
	e.notify(LevelInfo, "Task "+msg.verb, "", nil)
	if msg.newParent == "" || !e.store.Has(msg.newParent) {
		return nil
	}
	if complete {
		e.store.RecountChildren(msg.newParent)
		e.loaded[msg.newParent] = true
	} else {
		e.store.Update(msg.newParent, func(p *model.Task) { p.SubtaskCount++ })
		if fetchFirst {
			if !msg.reveal || e.pending[msg.newParent] {
				return nil
			}
			e.pending[msg.newParent] = true
			return e.fetch(msg.newParent)
		}
	}
	if !msg.reveal || e.expanded[msg.newParent] {
		return nil
	}
	e.expanded[msg.newParent] = true
	return e.scheduleSave()
}
