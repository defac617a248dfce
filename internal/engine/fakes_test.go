package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/projection"
)

var errBoom = errors.New("boom")

var fixedNow = func() time.Time { return time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) }

type fakeBackend struct {
	mu sync.Mutex

	list     []model.Task
	children map[string][]model.Task
	fetchErr error
	fetches  map[string]int

	mutateErr   error
	mutateLabel string
	mutates     []string

	bulkErr     error
	bulkCalls   [][]string
	deleteErr   error
	deleteCalls [][]string

	createErr error
	created   []CreatePayload
	// nextIDs are handed out to created tasks before falling back to the title.
	nextIDs []string

	reorderErr error
	reorders   [][]string

	moveErr error
	moves   []string

	assignees map[string][]model.UserRef
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		children:  map[string][]model.Task{},
		fetches:   map[string]int{},
		assignees: map[string][]model.UserRef{},
	}
}

func (f *fakeBackend) ListTasks(ctx context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Task(nil), f.list...), nil
}

func (f *fakeBackend) FetchChildren(ctx context.Context, taskID string) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[taskID]++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]model.Task(nil), f.children[taskID]...), nil
}

func (f *fakeBackend) MutateField(ctx context.Context, taskID string, field mutate.Field, value string) (MutateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutates = append(f.mutates, fmt.Sprintf("%s.%s=%s", taskID, field, value))
	if f.mutateErr != nil {
		return MutateResult{}, f.mutateErr
	}
	return MutateResult{Label: f.mutateLabel}, nil
}

func (f *fakeBackend) BulkMutate(ctx context.Context, ids []string, u mutate.BulkUpdate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls = append(f.bulkCalls, append([]string(nil), ids...))
	if f.bulkErr != nil {
		return 0, f.bulkErr
	}
	return len(ids), nil
}

func (f *fakeBackend) BulkDelete(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, append([]string(nil), ids...))
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return len(ids), nil
}

func (f *fakeBackend) CreateTask(ctx context.Context, p CreatePayload) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
	if f.createErr != nil {
		return model.Task{}, f.createErr
	}
	id := p.Title
	if len(f.nextIDs) > 0 {
		id, f.nextIDs = f.nextIDs[0], f.nextIDs[1:]
	}
	t := model.Task{
		ID:          id,
		Title:       p.Title,
		Status:      model.StatusRef{Value: p.Status},
		Priority:    model.PriorityRef{Value: p.Priority},
		MilestoneID: p.MilestoneID,
		ParentID:    p.ParentID,
		Position:    100,
	}
	if p.Position != nil {
		t.Position = *p.Position
	}
	return t, nil
}

func (f *fakeBackend) Reorder(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reorders = append(f.reorders, append([]string(nil), ids...))
	return f.reorderErr
}

func (f *fakeBackend) ChangeParent(ctx context.Context, taskID string, parentID *string, position *float64) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := ""
	if parentID != nil {
		p = *parentID
	}
	f.moves = append(f.moves, taskID+"->"+p)
	if f.moveErr != nil {
		return model.Task{}, f.moveErr
	}
	t := model.Task{ID: taskID, ParentID: parentID}
	if position != nil {
		t.Position = *position
	}
	return t, nil
}

func (f *fakeBackend) UpdateAssignees(ctx context.Context, taskID, userID string, action AssigneeAction) ([]model.UserRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.assignees[taskID]
	var next []model.UserRef
	for _, u := range cur {
		if u.ID != userID {
			next = append(next, u)
		}
	}
	if action == AssigneeAdd {
		next = append(next, model.UserRef{ID: userID, FullName: "User " + userID})
	}
	f.assignees[taskID] = next
	return next, nil
}

type memPrefs struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int
	err   error
}

func (m *memPrefs) LoadViewPreference(ctx context.Context, viewKey string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[viewKey], nil
}

func (m *memPrefs) SaveViewPreference(ctx context.Context, viewKey string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	if m.blobs == nil {
		m.blobs = map[string][]byte{}
	}
	m.blobs[viewKey] = append([]byte(nil), blob...)
	return nil
}

func task(id, parent string, pos float64) model.Task {
	t := model.Task{ID: id, Title: id, Position: pos}
	if parent != "" {
		t.ParentID = model.StringPtr(parent)
	}
	return t
}

func newTestEngine(be *fakeBackend, ps *memPrefs, tasks ...model.Task) *Engine {
	opts := Options{Backend: be, Now: fixedNow, Source: "test-view"}
	if ps != nil {
		opts.Prefs = ps
	}
	e := New(opts)
	e.Load(tasks)
	return e
}

func drive(t *testing.T, e *Engine, cmd tea.Cmd) {
	t.Helper()
	if err := e.Drive(context.Background(), cmd); err != nil {
		t.Fatalf("drive: %v", err)
	}
}

// rows renders the task rows of a projection as "id@depth".
func rows(res projection.Result) []string {
	var out []string
	for _, it := range res.Items {
		if it.Kind == projection.KindTask {
			out = append(out, fmt.Sprintf("%s@%d", it.Row.Task.ID, it.Row.Depth))
		}
	}
	return out
}
