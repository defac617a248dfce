package engine

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"tasklens/internal/events"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/projection"
)

type bulkMutateMsg struct {
	ids    []string
	update mutate.BulkUpdate
	count  int
	err    error
}

type bulkDeleteMsg struct {
	ids       []string
	selection bool
	count     int
	err       error
}

// Select adds or removes id. Only rows of the current projection can be selected.
func (e *Engine) Select(id string, on bool) bool {
	if !on {
		delete(e.selected, id)
		return true
	}
	if !rowIDs(e.Projection())[id] {
		return false
	}
	e.selected[id] = true
	return true
}

func (e *Engine) ToggleSelect(id string) bool {
	return e.Select(id, !e.selected[id])
}

// SelectAll selects every task row of the current projection. Hidden or unfetched tasks
// are never included.
func (e *Engine) SelectAll(on bool) {
	if !on {
		e.ClearSelection()
		return
	}
	for id := range rowIDs(e.Projection()) {
		e.selected[id] = true
	}
}

func (e *Engine) IsSelected(id string) bool { return e.selected[id] }

// Selected returns the selection in display order.
func (e *Engine) Selected() []string {
	if len(e.selected) == 0 {
		return nil
	}
	var out []string
	for _, it := range e.Projection().Items {
		if it.Kind == projection.KindTask && e.selected[it.Row.Task.ID] {
			out = append(out, it.Row.Task.ID)
		}
	}
	return out
}

func (e *Engine) ClearSelection() {
	e.selected = map[string]bool{}
}

func (e *Engine) BulkInFlight() bool { return e.bulkInFlight }

// BulkMutate sends one update for the whole selection. Nothing changes locally until
// the backend accepts it.
func (e *Engine) BulkMutate(u mutate.BulkUpdate) (tea.Cmd, error) {
	if e.bulkInFlight {
		return nil, ErrBulkInFlight
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	ids := e.Selected()
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}
	be := e.opts.Backend
	if be == nil {
		return nil, ErrNotReady
	}
	e.bulkInFlight = true
	e.log.WithField("tasks", len(ids)).Debug("bulk update")
	return e.call(func(ctx context.Context) tea.Msg {
		n, err := be.BulkMutate(ctx, ids, u)
		return bulkMutateMsg{ids: ids, update: u, count: n, err: err}
	}), nil
}

func (e *Engine) onBulkMutate(msg bulkMutateMsg) tea.Cmd {
	e.bulkInFlight = false
	if msg.err != nil {
		e.log.WithError(msg.err).Warn("bulk update")
		e.fail("Update failed", msg.err)
		return nil
	}
	var evs []events.Event
	parents := map[string]bool{}
	for _, id := range msg.ids {
		t, ok := e.store.Get(id)
		if !ok {
			continue
		}
		var results []mutate.SetFieldResult
		var applyErr error
		e.store.Update(id, func(p *model.Task) {
			results, applyErr = mutate.ApplyBulk(p, msg.update, e.opts.Catalog)
		})
		if applyErr != nil {
			e.log.WithError(applyErr).WithField("task_id", id).Warn("apply bulk update locally")
		}
		for _, r := range results {
			if !r.Changed {
				continue
			}
			evs = append(evs, events.Changed(id, string(r.Previous.Field), r.Value, r.Label))
			if r.Previous.Field == mutate.FieldStatus && t.Parent() != "" {
				parents[t.Parent()] = true
			}
		}
	}
	for p := range parents {
		e.recountParent(p)
	}
	e.ClearSelection()
	e.notify(LevelInfo, "Tasks updated", fmt.Sprintf("%d tasks updated", msg.count), nil)
	return e.publish(evs...)
}

// BulkDelete deletes the whole selection in one call.
func (e *Engine) BulkDelete() (tea.Cmd, error) {
	if e.bulkInFlight {
		return nil, ErrBulkInFlight
	}
	ids := e.Selected()
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}
	cmd, err := e.deleteCmd(ids, true)
	if err != nil {
		return nil, err
	}
	e.bulkInFlight = true
	return cmd, nil
}

// Delete deletes the given tasks without touching the selection.
func (e *Engine) Delete(ids ...string) (tea.Cmd, error) {
	var present []string
	for _, id := range ids {
		if e.store.Has(id) {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil, mutate.NotFoundError{Kind: "task", ID: fmt.Sprint(ids)}
	}
	return e.deleteCmd(present, false)
}

func (e *Engine) deleteCmd(ids []string, selection bool) (tea.Cmd, error) {
	be := e.opts.Backend
	if be == nil {
		return nil, ErrNotReady
	}
	return e.call(func(ctx context.Context) tea.Msg {
		n, err := be.BulkDelete(ctx, ids)
		return bulkDeleteMsg{ids: ids, selection: selection, count: n, err: err}
	}), nil
}

func (e *Engine) onBulkDelete(msg bulkDeleteMsg) tea.Cmd {
	if msg.selection {
		e.bulkInFlight = false
	}
	if msg.err != nil {
		e.log.WithError(msg.err).Warn("delete tasks")
		e.fail("Delete failed", msg.err)
		return nil
	}
	e.removeLocal(msg.ids)
	if msg.selection {
		e.ClearSelection()
	}
	e.notify(LevelInfo, "Tasks deleted", fmt.Sprintf("%d tasks deleted", msg.count), nil)
	return e.publish(events.Deleted(msg.ids...))
}
