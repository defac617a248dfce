package engine

import (
	"context"
	"errors"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tasklens/internal/events"
	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/prefs"
	"tasklens/internal/projection"
	"tasklens/internal/sorting"
	"tasklens/internal/taskstore"
)

// Backend is the task collaborator the engine reads from and writes through.
type Backend interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	FetchChildren(ctx context.Context, taskID string) ([]model.Task, error)
	MutateField(ctx context.Context, taskID string, field mutate.Field, value string) (MutateResult, error)
	BulkMutate(ctx context.Context, ids []string, u mutate.BulkUpdate) (int, error)
	BulkDelete(ctx context.Context, ids []string) (int, error)
	CreateTask(ctx context.Context, p CreatePayload) (model.Task, error)
	Reorder(ctx context.Context, ids []string) error
	ChangeParent(ctx context.Context, taskID string, parentID *string, position *float64) (model.Task, error)
	UpdateAssignees(ctx context.Context, taskID, userID string, action AssigneeAction) ([]model.UserRef, error)
}

// PreferenceStore persists opaque per-view preference blobs.
type PreferenceStore interface {
	LoadViewPreference(ctx context.Context, viewKey string) ([]byte, error)
	SaveViewPreference(ctx context.Context, viewKey string, blob []byte) error
}

type Bus interface {
	Publish(ctx context.Context, ev events.Event) error
	Subscribe(ctx context.Context) (<-chan events.Event, func(), error)
}

// MutateResult carries the canonical label a collaborator reports for a written value.
type MutateResult struct {
	Label string `json:"label,omitempty"`
}

type AssigneeAction string

const (
	AssigneeAdd    AssigneeAction = "add"
	AssigneeRemove AssigneeAction = "remove"
)

// CreatePayload is what a collaborator needs to create one task.
type CreatePayload struct {
	Title       string      `json:"title"`
	ParentID    *string     `json:"parentId,omitempty"`
	Status      string      `json:"status,omitempty"`
	Priority    string      `json:"priority,omitempty"`
	MilestoneID *string     `json:"milestone,omitempty"`
	DueDate     *model.Date `json:"dueDate,omitempty"`
	StartDate   *model.Date `json:"startDate,omitempty"`
	Description string      `json:"description,omitempty"`
	Position    *float64    `json:"position,omitempty"`
}

var (
	ErrTaskUpdating = errors.New("task has an update in flight")
	ErrNotEditable  = mutate.ErrNotEditable
	ErrBulkInFlight = errors.New("a bulk operation is already in flight")
	ErrNoSelection  = errors.New("no tasks selected")
	ErrInvalidMove  = errors.New("invalid move")
	ErrNotReady     = errors.New("engine has no backend")
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultSaveDelay = 500 * time.Millisecond
)

type Options struct {
	Backend Backend
	Prefs   PreferenceStore
	Bus     Bus
	ViewKey string
	Catalog grouping.Catalog
	Log     logrus.FieldLogger

	// Timeout bounds every collaborator call. Zero means DefaultTimeout.
	Timeout time.Duration
	// SaveDelay debounces preference saves. Zero saves immediately.
	SaveDelay time.Duration
	Now       func() time.Time
	// Source tags published events so the engine can skip its own. Generated when empty.
	Source string
}

// Engine holds the view state of one task table and turns it into projections. It
// follows the bubbletea model: operations that talk to collaborators return a tea.Cmd,
// and results come back through Update. It must only be used from one goroutine.
type Engine struct {
	opts Options
	log  logrus.FieldLogger

	store     *taskstore.Store
	ix        *taskstore.Index
	ixVersion uint64

	group           grouping.Mode
	sort            sorting.State
	query           string
	collapsedGroups map[grouping.Mode]map[string]bool
	expanded        map[string]bool
	columns         prefs.Columns

	pending map[string]bool
	// cancelled marks pending fetches whose node was collapsed before they landed.
	cancelled map[string]bool
	loaded    map[string]bool
	updating  map[string]bool
	edit      *EditSession

	selected     map[string]bool
	bulkInFlight bool

	adjacent []projection.AdjacentInsert
	notices  []Notice

	saveSeq   int
	bootstrap bool
}

func New(opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SaveDelay < 0 {
		opts.SaveDelay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Source == "" {
		opts.Source = uuid.NewString()
	}
	if opts.ViewKey == "" {
		opts.ViewKey = "default"
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Engine{
		opts:            opts,
		log:             log.WithField("view", opts.ViewKey),
		store:           taskstore.New(),
		group:           grouping.ModeNone,
		sort:            sorting.Default(),
		collapsedGroups: map[grouping.Mode]map[string]bool{},
		expanded:        map[string]bool{},
		columns:         prefs.DefaultColumns(),
		pending:         map[string]bool{},
		cancelled:       map[string]bool{},
		loaded:          map[string]bool{},
		updating:        map[string]bool{},
		selected:        map[string]bool{},
	}
}

// Source is the id this engine stamps on the events it publishes.
func (e *Engine) Source() string { return e.opts.Source }

func (e *Engine) ViewKey() string { return e.opts.ViewKey }

func (e *Engine) Catalog() grouping.Catalog { return e.opts.Catalog }

func (e *Engine) SetCatalog(cat grouping.Catalog) { e.opts.Catalog = cat }

// Load seeds the store directly, bypassing the backend.
func (e *Engine) Load(tasks []model.Task) {
	e.store.Merge(tasks)
}

func (e *Engine) Task(id string) (model.Task, bool) {
	return e.store.Get(id)
}

func (e *Engine) Tasks() []model.Task {
	return e.store.All()
}

func (e *Engine) index() *taskstore.Index {
	if e.ix == nil || e.ixVersion != e.store.Version() {
		e.ix = taskstore.BuildIndex(e.store)
		e.ixVersion = e.store.Version()
	}
	return e.ix
}

func (e *Engine) today() model.Date {
	return model.DateOf(e.opts.Now())
}

// call runs fn with a context bounded by the configured timeout.
func (e *Engine) call(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	timeout := e.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	}
}

// Update applies a completed command result on the loop and returns any follow-up.
// Messages the engine doesn't know are ignored.
func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case bootstrapMsg:
		return e.onBootstrap(msg)
	case childrenMsg:
		return e.onChildren(msg)
	case mutateMsg:
		return e.onMutate(msg)
	case assigneesMsg:
		return e.onAssignees(msg)
	case bulkMutateMsg:
		return e.onBulkMutate(msg)
	case bulkDeleteMsg:
		return e.onBulkDelete(msg)
	case createMsg:
		return e.onCreate(msg)
	case reorderMsg:
		return e.onReorder(msg)
	case changeParentMsg:
		return e.onChangeParent(msg)
	case saveTickMsg:
		return e.onSaveTick(msg)
	case savedMsg:
		e.onSaved(msg)
	case EventMsg:
		return e.onEvent(msg)
	case publishedMsg:
		if msg.err != nil {
			e.log.WithError(msg.err).WithField("event", msg.ev.Type).Warn("publish failed")
		}
	}
	return nil
}

// Drive runs cmd and every follow-up command it produces to completion, feeding each
// result through Update. It is for synchronous callers (the CLI, tests) and must not be
// handed a listener command, which never finishes.
func (e *Engine) Drive(ctx context.Context, cmd tea.Cmd) error {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			queue = append(queue, e.Update(msg))
		}
	}
	return nil
}
