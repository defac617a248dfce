package events

import (
	"context"
	"sync"

	"tasklens/internal/model"
)

type Type string

const (
	TaskChanged Type = "task-changed"
	TaskDeleted Type = "task-deleted"
)

// FieldAssignees is the Field of a task-changed event carrying a new assignee list.
const FieldAssignees = "assignees"

// Event is a change notification shared between views of the same task data.
type Event struct {
	Type Type `json:"type"`

	// task-changed
	TaskID    string          `json:"taskId,omitempty"`
	Field     string          `json:"field,omitempty"`
	Value     string          `json:"value,omitempty"`
	Label     string          `json:"label,omitempty"`
	Assignees []model.UserRef `json:"assignees,omitempty"`

	// task-deleted
	TaskIDs []string `json:"taskIds,omitempty"`

	// Source identifies the publisher so it can skip its own events.
	Source string `json:"source,omitempty"`
}

func Changed(taskID, field, value, label string) Event {
	return Event{Type: TaskChanged, TaskID: taskID, Field: field, Value: value, Label: label}
}

func Deleted(ids ...string) Event {
	return Event{Type: TaskDeleted, TaskIDs: append([]string(nil), ids...)}
}

const subscriberBuffer = 64

// LocalBus fans events out to in-process subscribers. Slow subscribers lose events
// rather than block publishers.
type LocalBus struct {
	mu      sync.Mutex
	next    int
	subs    map[int]chan Event
	dropped int
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: map[int]chan Event{}}
}

func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (b *LocalBus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
