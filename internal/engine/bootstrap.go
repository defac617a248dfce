package engine

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"tasklens/internal/model"
	"tasklens/internal/prefs"
)

type bootstrapMsg struct {
	tasks    []model.Task
	blob     []byte
	tasksErr error
	prefsErr error
}

type saveTickMsg struct{ seq int }

type savedMsg struct{ err error }

// Init loads the task list and the view preference concurrently.
func (e *Engine) Init() tea.Cmd {
	be, ps, key := e.opts.Backend, e.opts.Prefs, e.opts.ViewKey
	if be == nil && ps == nil {
		return nil
	}
	return e.call(func(ctx context.Context) tea.Msg {
		var msg bootstrapMsg
		var g errgroup.Group
		if be != nil {
			g.Go(func() error {
				msg.tasks, msg.tasksErr = be.ListTasks(ctx)
				return nil
			})
		}
		if ps != nil {
			g.Go(func() error {
				msg.blob, msg.prefsErr = ps.LoadViewPreference(ctx, key)
				return nil
			})
		}
		_ = g.Wait()
		return msg
	})
}

// Ready reports whether bootstrap has completed.
func (e *Engine) Ready() bool { return e.bootstrap }

func (e *Engine) onBootstrap(msg bootstrapMsg) tea.Cmd {
	e.bootstrap = true
	if msg.prefsErr != nil {
		e.log.WithError(msg.prefsErr).Warn("load view preference")
		e.fail("Preferences unavailable", msg.prefsErr)
	} else {
		p, err := prefs.Decode(msg.blob)
		if err != nil {
			e.log.WithError(err).Warn("decode view preference, using defaults")
		}
		e.ApplyPreference(p)
	}
	if msg.tasksErr != nil {
		e.log.WithError(msg.tasksErr).Error("list tasks")
		e.fail("Could not load tasks", msg.tasksErr)
		return nil
	}
	e.store.Merge(msg.tasks)
	e.log.WithField("tasks", len(msg.tasks)).Debug("bootstrap complete")

	// Persisted expanded nodes whose children aren't here yet are fetched now.
	var cmds []tea.Cmd
	for _, id := range sortedKeys(e.expanded) {
		if e.needsFetch(id) && !e.pending[id] {
			e.pending[id] = true
			cmds = append(cmds, e.fetch(id))
		}
	}
	return tea.Batch(cmds...)
}

// ApplyPreference replaces the persisted part of the view state. It does not save.
func (e *Engine) ApplyPreference(p prefs.ViewPreference) {
	e.columns = prefs.MergeColumns(p.Columns, prefs.DefaultColumns())
	e.group = p.GroupBy
	e.sort = p.Sort.Normalize()
	e.collapsedGroups = p.CollapsedSets()
	e.expanded = p.ExpandedSet()
}

// Preference is the persisted part of the current view state.
func (e *Engine) Preference() prefs.ViewPreference {
	p := prefs.DefaultViewPreference()
	p.Columns = e.columns.Saved()
	p.GroupBy = e.group
	p.Sort = e.sort
	p.SetFromSets(e.collapsedGroups, e.expanded)
	return p
}

// scheduleSave debounces preference writes: only the last change inside the delay
// window reaches the store.
func (e *Engine) scheduleSave() tea.Cmd {
	if e.opts.Prefs == nil {
		return nil
	}
	e.saveSeq++
	if e.opts.SaveDelay == 0 {
		return e.saveNow()
	}
	seq := e.saveSeq
	return tea.Tick(e.opts.SaveDelay, func(time.Time) tea.Msg { return saveTickMsg{seq: seq} })
}

func (e *Engine) onSaveTick(msg saveTickMsg) tea.Cmd {
	if msg.seq != e.saveSeq {
		return nil
	}
	return e.saveNow()
}

// saveNow encodes on the loop and writes off it.
func (e *Engine) saveNow() tea.Cmd {
	blob, err := prefs.Encode(e.Preference())
	if err != nil {
		e.log.WithError(err).Error("encode view preference")
		return nil
	}
	ps, key := e.opts.Prefs, e.opts.ViewKey
	return e.call(func(ctx context.Context) tea.Msg {
		return savedMsg{err: ps.SaveViewPreference(ctx, key, blob)}
	})
}

// Save writes the current preference immediately, skipping the debounce.
func (e *Engine) Save() tea.Cmd {
	if e.opts.Prefs == nil {
		return nil
	}
	e.saveSeq++
	return e.saveNow()
}

func (e *Engine) onSaved(msg savedMsg) {
	if msg.err != nil {
		e.log.WithError(msg.err).Warn("save view preference")
		e.fail("Preferences not saved", msg.err)
	}
}
