package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasklens/internal/model"
	"tasklens/internal/mutate"
)

// stalledBackend never answers mutate or fetch calls; they end when the call's
// deadline passes.
type stalledBackend struct {
	*fakeBackend
}

func (s stalledBackend) MutateField(ctx context.Context, taskID string, field mutate.Field, value string) (MutateResult, error) {
	<-ctx.Done()
	return MutateResult{}, ctx.Err()
}

func (s stalledBackend) FetchChildren(ctx context.Context, taskID string) ([]model.Task, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newStalledEngine(tasks ...model.Task) *Engine {
	e := New(Options{
		Backend: stalledBackend{newFakeBackend()},
		Now:     fixedNow,
		Source:  "test-view",
		Timeout: 20 * time.Millisecond,
	})
	e.Load(tasks)
	return e
}

func TestCommit_TimeoutRollsBack(t *testing.T) {
	e := newStalledEngine(task("1", "", 0))
	before, _ := e.Task("1")

	cmd, err := e.Commit("1", mutate.FieldStatus, "completed")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got, _ := e.Task("1"); got.Status.Value != "completed" || !e.IsUpdating("1") {
		t.Fatalf("expected optimistic apply while the call is open: %+v", got.Status)
	}
	drive(t, e, cmd)

	got, _ := e.Task("1")
	if got.Status != before.Status {
		t.Fatalf("expected status %+v restored, got %+v", before.Status, got.Status)
	}
	if e.IsUpdating("1") {
		t.Fatalf("updating flag not cleared after timeout")
	}
	notices := e.TakeNotices()
	if len(notices) != 1 || notices[0].Level != LevelError || !errors.Is(notices[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected one deadline notice, got %+v", notices)
	}
}

func TestExpand_TimeoutLeavesNodeCollapsed(t *testing.T) {
	p := task("1", "", 0)
	p.SubtaskCount = 2
	e := newStalledEngine(p)

	cmd := e.Expand("1")
	if cmd == nil {
		t.Fatalf("expected a fetch command")
	}
	drive(t, e, cmd)

	if e.IsExpanded("1") || e.IsLoading("1") {
		t.Fatalf("expected collapsed, idle node after timeout: expanded=%v loading=%v", e.IsExpanded("1"), e.IsLoading("1"))
	}
	notices := e.TakeNotices()
	if len(notices) != 1 || notices[0].Level != LevelError || !errors.Is(notices[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected one deadline notice, got %+v", notices)
	}
	// A timed out fetch can be retried.
	if e.Expand("1") == nil {
		t.Fatalf("expected expand to fetch again")
	}
}
