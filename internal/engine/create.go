package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/projection"
	"tasklens/internal/statusutil"
	"tasklens/internal/taskstore"
)

var ErrMaxDepth = errors.New("maximum nesting depth reached")

// CreateRequest describes where a new task goes. At most one of ParentID, TargetID
// and GroupKey is used, in that order of precedence: TargetID first.
type CreateRequest struct {
	Title string
	// ParentID creates a subtask.
	ParentID string
	// TargetID creates the task directly above or below an existing one, with the same
	// parent and milestone (the first catalog milestone when the target has none). It
	// stays pinned next to the target in projections.
	TargetID  string
	Placement projection.Placement
	// GroupKey creates the task inside a bucket of the active grouping.
	GroupKey string
}

type createMsg struct {
	req  CreateRequest
	task model.Task
	err  error
}

func (e *Engine) Create(req CreateRequest) (tea.Cmd, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, mutate.InvalidValueError{Field: mutate.FieldTitle, Value: req.Title, Err: errors.New("title is empty")}
	}
	req.Title = title
	p := CreatePayload{Title: title, Status: statusutil.DefaultStatus, Priority: statusutil.DefaultPriority}
	ix := e.index()

	switch {
	case req.TargetID != "":
		target, ok := ix.Task(req.TargetID)
		if !ok {
			return nil, mutate.NotFoundError{Kind: "task", ID: req.TargetID}
		}
		if req.Placement != projection.Above {
			req.Placement = projection.Below
		}
		pos := target.Position + 0.5
		if req.Placement == projection.Above {
			pos = target.Position - 0.5
		}
		p.Position = &pos
		p.ParentID = target.Clone().ParentID
		p.MilestoneID = target.Clone().MilestoneID
		if p.MilestoneID == nil && len(e.opts.Catalog.Milestones) > 0 {
			p.MilestoneID = model.StringPtr(e.opts.Catalog.Milestones[0].ID)
		}
	case req.ParentID != "":
		parent, ok := ix.Task(req.ParentID)
		if !ok {
			return nil, mutate.NotFoundError{Kind: "task", ID: req.ParentID}
		}
		if ix.Depth(req.ParentID) >= taskstore.MaxDepth {
			return nil, ErrMaxDepth
		}
		p.ParentID = model.StringPtr(req.ParentID)
		p.MilestoneID = parent.Clone().MilestoneID
	case e.group != grouping.ModeNone:
		d := grouping.QuickAddDefaults(e.group, req.GroupKey, e.opts.Catalog)
		p.Status, p.Priority = d.Status, d.Priority
		if d.MilestoneID != "" {
			p.MilestoneID = model.StringPtr(d.MilestoneID)
		}
	}
	return e.create(req, p)
}

// Duplicate copies a task's fields into a new task placed right below it.
func (e *Engine) Duplicate(id string) (tea.Cmd, error) {
	t, ok := e.store.Get(id)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "task", ID: id}
	}
	pos := t.Position + 0.5
	p := CreatePayload{
		Title:       t.Title,
		ParentID:    t.ParentID,
		Status:      t.Status.Value,
		Priority:    t.Priority.Value,
		MilestoneID: t.MilestoneID,
		DueDate:     t.DueDate,
		StartDate:   t.StartDate,
		Description: t.Description,
		Position:    &pos,
	}
	return e.create(CreateRequest{Title: t.Title, TargetID: id, Placement: projection.Below}, p)
}

func (e *Engine) create(req CreateRequest, p CreatePayload) (tea.Cmd, error) {
	be := e.opts.Backend
	if be == nil {
		return nil, ErrNotReady
	}
	return e.call(func(ctx context.Context) tea.Msg {
		t, err := be.CreateTask(ctx, p)
		if err == nil && t.ParentID == nil && p.ParentID != nil {
			t.ParentID = p.ParentID
		}
		return createMsg{req: req, task: t, err: err}
	}), nil
}

func (e *Engine) onCreate(msg createMsg) tea.Cmd {
	if msg.err != nil {
		e.log.WithError(msg.err).Warn("create task")
		e.fail("Create failed", msg.err)
		return nil
	}
	t := msg.task
	if strings.TrimSpace(t.ID) == "" {
		e.fail("Create failed", errors.New("backend returned a task without an id"))
		return nil
	}
	parent := t.Parent()
	fetchFirst := parent != "" && e.needsFetch(parent)
	complete := parent == "" || e.childrenComplete(parent)
	e.store.Upsert(t)
	e.notify(LevelInfo, "Task created", fmt.Sprintf("%q created", t.Title), nil)

	if msg.req.TargetID != "" && e.store.Has(msg.req.TargetID) {
		e.adjacent = append(e.adjacent, projection.AdjacentInsert{
			TaskID:    t.ID,
			TargetID:  msg.req.TargetID,
			Placement: msg.req.Placement,
		})
	}
	if parent == "" || !e.store.Has(parent) {
		return nil
	}
	if complete {
		e.store.RecountChildren(parent)
		e.loaded[parent] = true
	} else {
		e.store.Update(parent, func(p *model.Task) {
			p.SubtaskCount++
			if statusutil.IsEndState(t.Status.Value) {
				p.CompletedSubtaskCount++
			}
		})
		if fetchFirst {
			// None of the siblings are here yet; fetching them also reveals the parent.
			if e.pending[parent] {
				return nil
			}
			e.pending[parent] = true
			return e.fetch(parent)
		}
	}
	if msg.req.TargetID != "" || e.expanded[parent] {
		return nil
	}
	e.expanded[parent] = true
	return e.scheduleSave()
}
