package engine

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"tasklens/internal/events"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
)

type publishedMsg struct {
	ev  events.Event
	err error
}

// EventMsg delivers a bus event to Update. It re-arms the subscription it came from.
type EventMsg struct {
	Event events.Event
	ch    <-chan events.Event
}

func (e *Engine) publish(evs ...events.Event) tea.Cmd {
	bus := e.opts.Bus
	if bus == nil || len(evs) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(evs))
	for _, ev := range evs {
		ev.Source = e.opts.Source
		cmds = append(cmds, e.call(func(ctx context.Context) tea.Msg {
			return publishedMsg{ev: ev, err: bus.Publish(ctx, ev)}
		}))
	}
	return tea.Batch(cmds...)
}

// Listen subscribes to the bus and returns a command that waits for the next event.
// Each EventMsg handled by Update queues the wait for the one after it. Call stop to
// end the subscription. Listener commands block, so they belong in a tea.Program and
// never in Drive.
func (e *Engine) Listen(ctx context.Context) (cmd tea.Cmd, stop func(), err error) {
	if e.opts.Bus == nil {
		return nil, func() {}, nil
	}
	ch, cancel, err := e.opts.Bus.Subscribe(ctx)
	if err != nil {
		return nil, nil, err
	}
	return waitEvent(ch), cancel, nil
}

func waitEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg{Event: ev, ch: ch}
	}
}

func (e *Engine) onEvent(msg EventMsg) tea.Cmd {
	cmd := e.Absorb(msg.Event)
	if msg.ch == nil {
		return cmd
	}
	return tea.Batch(cmd, waitEvent(msg.ch))
}

// Absorb applies a change made elsewhere to the store. Events this engine published
// itself are ignored. A change to a hidden column's field shows that column.
func (e *Engine) Absorb(ev events.Event) tea.Cmd {
	if ev.Source != "" && ev.Source == e.opts.Source {
		return nil
	}
	log := e.log.WithField("event", ev.Type)
	switch ev.Type {
	case events.TaskChanged:
		t, ok := e.store.Get(ev.TaskID)
		if !ok {
			return nil
		}
		if ev.Field == events.FieldAssignees {
			users := append([]model.UserRef(nil), ev.Assignees...)
			e.store.Update(ev.TaskID, func(p *model.Task) { p.Assignees = users })
			return e.showColumn(events.FieldAssignees)
		}
		f, err := mutate.ParseField(ev.Field)
		if err != nil {
			log.WithField("field", ev.Field).Debug("ignoring change to an untracked field")
			return nil
		}
		var applyErr error
		e.store.Update(ev.TaskID, func(p *model.Task) {
			if _, applyErr = mutate.Apply(p, f, ev.Value, e.opts.Catalog); applyErr == nil {
				mutate.SetLabel(p, f, ev.Label)
			}
		})
		if applyErr != nil {
			log.WithError(applyErr).WithField("task_id", ev.TaskID).Warn("ignoring invalid change event")
			return nil
		}
		if f == mutate.FieldStatus {
			e.recountParent(t.Parent())
		}
		return e.showColumn(string(f))
	case events.TaskDeleted:
		e.removeLocal(ev.TaskIDs)
	}
	return nil
}

func (e *Engine) showColumn(key string) tea.Cmd {
	cols, changed := e.columns.ShowIfHidden(key)
	if !changed {
		return nil
	}
	e.columns = cols
	return e.scheduleSave()
}

// removeLocal drops ids and their loaded descendants and cleans every piece of view
// state that refers to them.
func (e *Engine) removeLocal(ids []string) []string {
	ix := e.index()
	var all []string
	parents := map[string]bool{}
	for _, id := range ids {
		t, ok := ix.Task(id)
		if !ok {
			continue
		}
		all = append(all, id)
		all = append(all, ix.Descendants(id)...)
		if p := t.Parent(); p != "" {
			parents[p] = true
		}
	}
	removed := e.store.Remove(all...)
	if len(removed) == 0 {
		return nil
	}
	gone := make(map[string]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
		delete(e.expanded, id)
		delete(e.loaded, id)
		delete(e.selected, id)
		delete(e.updating, id)
	}
	if e.edit != nil && gone[e.edit.TaskID] {
		e.edit = nil
	}
	kept := e.adjacent[:0]
	for _, a := range e.adjacent {
		if !gone[a.TaskID] && !gone[a.TargetID] {
			kept = append(kept, a)
		}
	}
	e.adjacent = kept
	for p := range parents {
		if !gone[p] {
			e.store.RecountChildren(p)
		}
	}
	return removed
}
