package engine

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"tasklens/internal/events"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
)

// EditSession is the single open cell editor.
type EditSession struct {
	TaskID string
	Field  mutate.Field
	Value  string
}

type mutateMsg struct {
	id     string
	field  mutate.Field
	value  string
	prev   mutate.Snapshot
	result MutateResult
	err    error
}

type assigneesMsg struct {
	id     string
	action AssigneeAction
	users  []model.UserRef
	err    error
}

// StartEdit opens an editor on one cell. Any other open editor is discarded without
// saving.
func (e *Engine) StartEdit(id string, field mutate.Field) error {
	t, ok := e.store.Get(id)
	if !ok {
		return mutate.NotFoundError{Kind: "task", ID: id}
	}
	if _, err := mutate.ParseField(string(field)); err != nil {
		return err
	}
	if e.updating[id] {
		return ErrTaskUpdating
	}
	e.edit = &EditSession{TaskID: id, Field: field, Value: mutate.Value(t, field)}
	return nil
}

func (e *Engine) EditingCell() (EditSession, bool) {
	if e.edit == nil {
		return EditSession{}, false
	}
	return *e.edit, true
}

// SetPending replaces the unsaved value of the open editor.
func (e *Engine) SetPending(value string) {
	if e.edit != nil {
		e.edit.Value = value
	}
}

func (e *Engine) CancelEdit() {
	e.edit = nil
}

// CommitEdit commits the open editor's value.
func (e *Engine) CommitEdit() (tea.Cmd, error) {
	if e.edit == nil {
		return nil, nil
	}
	s := *e.edit
	return e.Commit(s.TaskID, s.Field, s.Value)
}

func (e *Engine) IsUpdating(id string) bool { return e.updating[id] }

// Commit writes value to the store right away and sends it to the backend. The task
// stays locked until the backend answers; on failure the previous value and label are
// restored exactly.
func (e *Engine) Commit(id string, field mutate.Field, value string) (tea.Cmd, error) {
	t, ok := e.store.Get(id)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "task", ID: id}
	}
	if e.updating[id] {
		return nil, ErrTaskUpdating
	}
	working := t.Clone()
	res, err := mutate.Apply(&working, field, value, e.opts.Catalog)
	if err != nil {
		return nil, err
	}
	if e.edit != nil && e.edit.TaskID == id && e.edit.Field == field {
		e.edit = nil
	}
	if !res.Changed {
		return nil, nil
	}
	be := e.opts.Backend
	if be == nil {
		return nil, ErrNotReady
	}

	e.store.Update(id, func(p *model.Task) { *p = working })
	if field == mutate.FieldStatus {
		e.recountParent(t.Parent())
	}
	e.updating[id] = true
	e.log.WithFields(logrus.Fields{"task_id": id, "field": field}).Debug("commit")

	prev, wire := res.Previous, res.Value
	return e.call(func(ctx context.Context) tea.Msg {
		out, err := be.MutateField(ctx, id, field, wire)
		return mutateMsg{id: id, field: field, value: wire, prev: prev, result: out, err: err}
	}), nil
}

func (e *Engine) onMutate(msg mutateMsg) tea.Cmd {
	delete(e.updating, msg.id)
	log := e.log.WithFields(logrus.Fields{"task_id": msg.id, "field": msg.field})
	t, ok := e.store.Get(msg.id)
	if !ok {
		log.Debug("discarding mutate result for a removed task")
		return nil
	}
	if msg.err != nil {
		log.WithError(msg.err).Warn("mutate failed, rolling back")
		e.store.Update(msg.id, func(p *model.Task) { mutate.Restore(p, msg.prev) })
		if msg.field == mutate.FieldStatus {
			e.recountParent(t.Parent())
		}
		e.fail("Update failed", msg.err)
		return nil
	}
	if msg.result.Label != "" {
		e.store.Update(msg.id, func(p *model.Task) { mutate.SetLabel(p, msg.field, msg.result.Label) })
	}
	t, _ = e.store.Get(msg.id)
	label := mutate.Label(t, msg.field, e.opts.Catalog)
	return e.publish(events.Changed(msg.id, string(msg.field), msg.value, label))
}

// ToggleAssignee adds userID to the task's assignees, or removes it when already there.
// The store changes when the backend confirms the new list.
func (e *Engine) ToggleAssignee(id, userID string) (tea.Cmd, error) {
	t, ok := e.store.Get(id)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "task", ID: id}
	}
	if e.updating[id] {
		return nil, ErrTaskUpdating
	}
	be := e.opts.Backend
	if be == nil {
		return nil, ErrNotReady
	}
	action := AssigneeAdd
	for _, u := range t.Assignees {
		if u.ID == userID {
			action = AssigneeRemove
			break
		}
	}
	e.updating[id] = true
	return e.call(func(ctx context.Context) tea.Msg {
		users, err := be.UpdateAssignees(ctx, id, userID, action)
		return assigneesMsg{id: id, action: action, users: users, err: err}
	}), nil
}

func (e *Engine) onAssignees(msg assigneesMsg) tea.Cmd {
	delete(e.updating, msg.id)
	if !e.store.Has(msg.id) {
		return nil
	}
	if msg.err != nil {
		e.log.WithError(msg.err).WithField("task_id", msg.id).Warn("update assignees")
		e.fail("Update failed", msg.err)
		return nil
	}
	users := append([]model.UserRef(nil), msg.users...)
	e.store.Update(msg.id, func(p *model.Task) { p.Assignees = users })
	if msg.action == AssigneeAdd {
		e.notify(LevelInfo, "Task updated", "Assignee added", nil)
	} else {
		e.notify(LevelInfo, "Task updated", "Assignee removed", nil)
	}
	ev := events.Changed(msg.id, events.FieldAssignees, "", "")
	ev.Assignees = users
	return e.publish(ev)
}

// recountParent refreshes the child counters of a parent whose children are loaded.
func (e *Engine) recountParent(parentID string) {
	if parentID == "" || !e.index().HasLoadedChildren(parentID) {
		return
	}
	e.store.RecountChildren(parentID)
}
