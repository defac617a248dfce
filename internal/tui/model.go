package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"tasklens/internal/engine"
	"tasklens/internal/logging"
	"tasklens/internal/mutate"
	"tasklens/internal/projection"
	"tasklens/internal/sorting"
	"tasklens/internal/statusutil"
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeEdit
	modeCreate
	modeConfirmDelete
)

const flashFor = 4 * time.Second

type flashDoneMsg struct{ seq int }

type Options struct {
	Log logrus.FieldLogger
}

// Model is the bubbletea model of the task table. It owns no task state; every
// operation goes through the engine.
type Model struct {
	ctx  context.Context
	eng  *engine.Engine
	log  logrus.FieldLogger
	keys keyMap
	help help.Model

	input     textinput.Model
	mode      mode
	createReq engine.CreateRequest

	// cursor is the key of the focused item; cursorIdx is its last known position,
	// used when the item disappears.
	cursor    string
	cursorIdx int
	offset    int

	width, height int

	flash      string
	flashError bool
	flashSeq   int

	listen tea.Cmd
	stop   func()
}

func New(ctx context.Context, eng *engine.Engine, opts Options) (*Model, error) {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	listen, stop, err := eng.Listen(ctx)
	if err != nil {
		return nil, err
	}
	in := textinput.New()
	in.CharLimit = 200
	in.Width = 50
	return &Model{
		ctx:    ctx,
		eng:    eng,
		log:    log,
		keys:   defaultKeys(),
		help:   help.New(),
		input:  in,
		listen: listen,
		stop:   stop,
	}, nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.eng.Init(), m.listen)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil
	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil
	case tea.KeyMsg:
		cmd := m.onKey(msg)
		return m, tea.Batch(cmd, m.drainNotices())
	}
	cmd := m.eng.Update(msg)
	return m, tea.Batch(cmd, m.drainNotices())
}

func (m *Model) drainNotices() tea.Cmd {
	ns := m.eng.TakeNotices()
	if len(ns) == 0 {
		return nil
	}
	last := ns[len(ns)-1]
	return m.setFlash(last.String(), last.Level == engine.LevelError)
}

func (m *Model) setFlash(text string, isErr bool) tea.Cmd {
	m.flash = text
	m.flashError = isErr
	m.flashSeq++
	seq := m.flashSeq
	return tea.Tick(flashFor, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}

func (m *Model) flashErr(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	return m.setFlash(err.Error(), true)
}

// run turns a synchronous validation error into a flash and passes the command on.
func (m *Model) run(cmd tea.Cmd, err error) tea.Cmd {
	if err != nil {
		return m.flashErr(err)
	}
	return cmd
}

func (m *Model) onKey(msg tea.KeyMsg) tea.Cmd {
	switch m.mode {
	case modeSearch:
		return m.onSearchKey(msg)
	case modeEdit:
		return m.onEditKey(msg)
	case modeCreate:
		return m.onCreateKey(msg)
	case modeConfirmDelete:
		m.mode = modeNormal
		if msg.String() != "y" {
			return m.setFlash("Delete cancelled", false)
		}
		if len(m.eng.Selected()) > 0 {
			return m.run(m.eng.BulkDelete())
		}
		if row, ok := m.currentRow(); ok {
			return m.run(m.eng.Delete(row.Task.ID))
		}
		return nil
	}

	items := m.eng.Projection().Items
	m.clampCursor(items)
	row, hasRow := m.currentRow()
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		if m.stop != nil {
			m.stop()
		}
		return tea.Sequence(m.eng.Save(), tea.Quit)
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, k.Up):
		m.moveCursor(items, -1)
	case key.Matches(msg, k.Down):
		m.moveCursor(items, 1)
	case key.Matches(msg, k.Toggle):
		if g, ok := m.currentGroup(); ok {
			return m.eng.ToggleGroup(g.Key)
		}
		if hasRow {
			return m.eng.Toggle(row.Task.ID)
		}
	case key.Matches(msg, k.Expand):
		if g, ok := m.currentGroup(); ok && g.Collapsed {
			return m.eng.ToggleGroup(g.Key)
		}
		if hasRow {
			return m.eng.Expand(row.Task.ID)
		}
	case key.Matches(msg, k.Collapse):
		if g, ok := m.currentGroup(); ok && !g.Collapsed {
			return m.eng.ToggleGroup(g.Key)
		}
		if !hasRow {
			return nil
		}
		if row.Expanded {
			return m.eng.Collapse(row.Task.ID)
		}
		if p := row.Task.Parent(); p != "" {
			m.cursor = p
		}
	case key.Matches(msg, k.ExpandAll):
		return m.eng.ExpandAll()
	case key.Matches(msg, k.CollapseAll):
		return m.eng.CollapseAll()
	case key.Matches(msg, k.Select):
		if hasRow {
			m.eng.ToggleSelect(row.Task.ID)
		}
	case key.Matches(msg, k.SelectAll):
		res := m.eng.Projection()
		m.eng.SelectAll(len(m.eng.Selected()) < res.TaskRows)
	case key.Matches(msg, k.Search):
		m.mode = modeSearch
		m.input.Placeholder = "search"
		m.input.SetValue(m.eng.Query())
		return m.input.Focus()
	case key.Matches(msg, k.Group):
		return m.eng.CycleGroupMode()
	case key.Matches(msg, k.Sort):
		return m.eng.SetSort(nextSort(m.eng.SortState(), m.sortableColumns()))
	case key.Matches(msg, k.EditTitle):
		if hasRow {
			return m.startEdit(row.Task.ID, mutate.FieldTitle)
		}
	case key.Matches(msg, k.EditDue):
		if hasRow {
			return m.startEdit(row.Task.ID, mutate.FieldDueDate)
		}
	case key.Matches(msg, k.Status):
		if hasRow {
			next := statusutil.NextStatus(row.Task.Status.Value)
			if len(m.eng.Selected()) > 0 {
				return m.run(m.eng.BulkMutate(mutate.BulkUpdate{Status: &next}))
			}
			return m.run(m.eng.Commit(row.Task.ID, mutate.FieldStatus, next))
		}
	case key.Matches(msg, k.Priority):
		if hasRow {
			next := nextPriority(row.Task.Priority.Value)
			if len(m.eng.Selected()) > 0 {
				return m.run(m.eng.BulkMutate(mutate.BulkUpdate{Priority: &next}))
			}
			return m.run(m.eng.Commit(row.Task.ID, mutate.FieldPriority, next))
		}
	case key.Matches(msg, k.NewBelow):
		switch {
		case hasRow:
			return m.startCreate(engine.CreateRequest{TargetID: row.Task.ID, Placement: projection.Below})
		default:
			if g, ok := m.currentGroup(); ok {
				return m.startCreate(engine.CreateRequest{GroupKey: g.Key})
			}
			return m.startCreate(engine.CreateRequest{})
		}
	case key.Matches(msg, k.NewSubtask):
		if hasRow {
			return m.startCreate(engine.CreateRequest{ParentID: row.Task.ID})
		}
	case key.Matches(msg, k.Duplicate):
		if hasRow {
			return m.run(m.eng.Duplicate(row.Task.ID))
		}
	case key.Matches(msg, k.Delete):
		if n := len(m.eng.Selected()); n > 0 || hasRow {
			m.mode = modeConfirmDelete
		}
	case key.Matches(msg, k.MoveUp):
		if hasRow {
			if sib, ok := sibling(items, m.cursorIdx, -1); ok {
				return m.run(m.eng.Move(row.Task.ID, sib, engine.DropBefore))
			}
		}
	case key.Matches(msg, k.MoveDown):
		if hasRow {
			if sib, ok := sibling(items, m.cursorIdx, 1); ok {
				return m.run(m.eng.Move(row.Task.ID, sib, engine.DropAfter))
			}
		}
	case key.Matches(msg, k.Promote):
		if hasRow {
			return m.run(m.eng.Promote(row.Task.ID))
		}
	case key.Matches(msg, k.Demote):
		if hasRow {
			return m.run(m.eng.Demote(row.Task.ID))
		}
	}
	return nil
}

func (m *Model) onSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.eng.SetQuery("")
		m.endInput()
		return nil
	case tea.KeyEnter:
		m.endInput()
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.eng.SetQuery(m.input.Value())
	return cmd
}

func (m *Model) startEdit(id string, f mutate.Field) tea.Cmd {
	if err := m.eng.StartEdit(id, f); err != nil {
		return m.flashErr(err)
	}
	t, _ := m.eng.Task(id)
	m.mode = modeEdit
	m.input.Placeholder = string(f)
	m.input.SetValue(mutate.Value(t, f))
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) onEditKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.eng.CancelEdit()
		m.endInput()
		return nil
	case tea.KeyEnter:
		m.eng.SetPending(m.input.Value())
		cmd, err := m.eng.CommitEdit()
		if err != nil {
			var inv mutate.InvalidValueError
			if errors.As(err, &inv) {
				// Stay in the editor so the value can be fixed.
				return m.flashErr(err)
			}
			m.eng.CancelEdit()
		}
		m.endInput()
		return m.run(cmd, err)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) startCreate(req engine.CreateRequest) tea.Cmd {
	m.createReq = req
	m.mode = modeCreate
	m.input.Placeholder = "title"
	m.input.SetValue("")
	return m.input.Focus()
}

func (m *Model) onCreateKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.endInput()
		return nil
	case tea.KeyEnter:
		req := m.createReq
		req.Title = m.input.Value()
		m.endInput()
		return m.run(m.eng.Create(req))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) endInput() {
	m.mode = modeNormal
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) clampCursor(items []projection.Item) {
	if len(items) == 0 {
		m.cursor, m.cursorIdx = "", 0
		return
	}
	for i, it := range items {
		if it.Key() == m.cursor {
			m.cursorIdx = i
			return
		}
	}
	m.cursorIdx = min(max(m.cursorIdx, 0), len(items)-1)
	m.cursor = items[m.cursorIdx].Key()
}

func (m *Model) moveCursor(items []projection.Item, delta int) {
	if len(items) == 0 {
		return
	}
	m.cursorIdx = min(max(m.cursorIdx+delta, 0), len(items)-1)
	m.cursor = items[m.cursorIdx].Key()
}

func (m *Model) currentItem() (projection.Item, bool) {
	items := m.eng.Projection().Items
	m.clampCursor(items)
	if len(items) == 0 {
		return projection.Item{}, false
	}
	return items[m.cursorIdx], true
}

func (m *Model) currentRow() (projection.TaskRow, bool) {
	it, ok := m.currentItem()
	if !ok || it.Kind != projection.KindTask {
		return projection.TaskRow{}, false
	}
	return *it.Row, true
}

func (m *Model) currentGroup() (projection.GroupHeader, bool) {
	it, ok := m.currentItem()
	if !ok || it.Kind != projection.KindGroup {
		return projection.GroupHeader{}, false
	}
	return *it.Group, true
}

// sibling finds the nearest row in direction dir that shares the parent of items[i].
func sibling(items []projection.Item, i, dir int) (string, bool) {
	if i < 0 || i >= len(items) || items[i].Kind != projection.KindTask {
		return "", false
	}
	cur := items[i].Row
	for j := i + dir; j >= 0 && j < len(items); j += dir {
		it := items[j]
		if it.Kind != projection.KindTask {
			return "", false
		}
		if it.Row.Depth < cur.Depth {
			return "", false
		}
		if it.Row.Depth == cur.Depth && it.Row.Task.Parent() == cur.Task.Parent() {
			return it.Row.Task.ID, true
		}
	}
	return "", false
}

func (m *Model) sortableColumns() []string {
	var out []string
	for _, c := range m.eng.Columns().Visible() {
		if c.Sortable {
			out = append(out, c.Key)
		}
	}
	return out
}

// nextSort walks manual -> each column ascending then descending -> manual.
func nextSort(cur sorting.State, cols []string) sorting.State {
	cur = cur.Normalize()
	if len(cols) == 0 {
		return sorting.Default()
	}
	if cur.IsManual() {
		return sorting.State{Column: cols[0], Direction: sorting.Asc}
	}
	if cur.Direction == sorting.Asc {
		return sorting.State{Column: cur.Column, Direction: sorting.Desc}
	}
	for i, c := range cols {
		if c == cur.Column && i+1 < len(cols) {
			return sorting.State{Column: cols[i+1], Direction: sorting.Asc}
		}
	}
	return sorting.Default()
}

func nextPriority(id string) string {
	defs := statusutil.Priorities()
	for i, d := range defs {
		if strings.EqualFold(d.ID, id) {
			return defs[(i+1)%len(defs)].ID
		}
	}
	return defs[0].ID
}
