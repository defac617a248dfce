package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasklens/internal/events"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
)

func TestCommit_FailureRestoresExactStatus(t *testing.T) {
	be := newFakeBackend()
	be.mutateErr = errBoom
	tk := task("1", "", 0)
	tk.Status = model.StatusRef{Value: "in_review", Label: "Needs review"}
	e := newTestEngine(be, nil, tk)

	cmd, err := e.Commit("1", mutate.FieldStatus, "completed")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ := e.Task("1")
	if got.Status.Value != "completed" || !e.IsUpdating("1") {
		t.Fatalf("expected optimistic write and updating flag: %+v", got.Status)
	}
	if _, err := e.Commit("1", mutate.FieldTitle, "other"); !errors.Is(err, ErrTaskUpdating) {
		t.Fatalf("expected ErrTaskUpdating, got %v", err)
	}
	if err := e.StartEdit("1", mutate.FieldTitle); !errors.Is(err, ErrTaskUpdating) {
		t.Fatalf("expected edits to be locked, got %v", err)
	}

	drive(t, e, cmd)
	got, _ = e.Task("1")
	if got.Status != (model.StatusRef{Value: "in_review", Label: "Needs review"}) {
		t.Fatalf("expected exact rollback, got %+v", got.Status)
	}
	if e.IsUpdating("1") {
		t.Fatalf("updating flag not cleared")
	}
	if n := e.TakeNotices(); len(n) != 1 || n[0].Level != LevelError {
		t.Fatalf("expected one error notice, got %+v", n)
	}
}

func TestCommit_SuccessMergesLabelAndPublishes(t *testing.T) {
	be := newFakeBackend()
	be.mutateLabel = "Shipped"
	bus := events.NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, stop, _ := bus.Subscribe(ctx)
	defer stop()

	e := New(Options{Backend: be, Bus: bus, Source: "me", Now: fixedNow})
	e.Load([]model.Task{task("1", "", 0)})

	cmd, err := e.Commit("1", mutate.FieldStatus, "done")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	drive(t, e, cmd)

	got, _ := e.Task("1")
	if got.Status.Value != "completed" || got.Status.Label != "Shipped" {
		t.Fatalf("unexpected status: %+v", got.Status)
	}
	if be.mutates[0] != "1.status=completed" {
		t.Fatalf("unexpected backend call: %v", be.mutates)
	}
	select {
	case ev := <-sub:
		if ev.Type != events.TaskChanged || ev.TaskID != "1" || ev.Field != "status" || ev.Value != "completed" || ev.Label != "Shipped" || ev.Source != "me" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event published")
	}
}

func TestCommit_UnchangedValueIssuesNothing(t *testing.T) {
	be := newFakeBackend()
	e := newTestEngine(be, nil, task("1", "", 0))
	cmd, err := e.Commit("1", mutate.FieldTitle, "1")
	if err != nil || cmd != nil {
		t.Fatalf("expected no-op commit, got cmd=%v err=%v", cmd != nil, err)
	}
	if len(be.mutates) != 0 {
		t.Fatalf("unexpected backend calls: %v", be.mutates)
	}
}

func TestCommit_StatusRecountsLoadedParent(t *testing.T) {
	be := newFakeBackend()
	p := task("p", "", 0)
	p.SubtaskCount = 2
	e := newTestEngine(be, nil, p, task("c1", "p", 0), task("c2", "p", 1))

	cmd, err := e.Commit("c1", mutate.FieldStatus, "completed")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ := e.Task("p")
	if got.CompletedSubtaskCount != 1 {
		t.Fatalf("expected parent progress to follow the edit, got %d", got.CompletedSubtaskCount)
	}
	drive(t, e, cmd)
}

func TestEditSession(t *testing.T) {
	be := newFakeBackend()
	e := newTestEngine(be, nil, task("1", "", 0), task("2", "", 1))

	if err := e.StartEdit("1", mutate.FieldTitle); err != nil {
		t.Fatalf("start edit: %v", err)
	}
	e.SetPending("draft")
	if err := e.StartEdit("2", mutate.FieldTitle); err != nil {
		t.Fatalf("start edit: %v", err)
	}
	s, ok := e.EditingCell()
	if !ok || s.TaskID != "2" || s.Value != "2" {
		t.Fatalf("expected the second session to replace the first: %+v", s)
	}
	if got, _ := e.Task("1"); got.Title != "1" {
		t.Fatalf("discarded session must not be saved, got %q", got.Title)
	}

	e.SetPending("Renamed")
	cmd, err := e.CommitEdit()
	if err != nil {
		t.Fatalf("commit edit: %v", err)
	}
	if _, ok := e.EditingCell(); ok {
		t.Fatalf("expected session closed after commit")
	}
	drive(t, e, cmd)
	if got, _ := e.Task("2"); got.Title != "Renamed" {
		t.Fatalf("unexpected title %q", got.Title)
	}

	if err := e.StartEdit("2", mutate.Field("assignees")); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	var nf mutate.NotFoundError
	if err := e.StartEdit("404", mutate.FieldTitle); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestToggleAssignee(t *testing.T) {
	be := newFakeBackend()
	e := newTestEngine(be, nil, task("1", "", 0))

	cmd, err := e.ToggleAssignee("1", "u1")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	drive(t, e, cmd)
	got, _ := e.Task("1")
	if len(got.Assignees) != 1 || got.Assignees[0].ID != "u1" {
		t.Fatalf("expected assignee added: %+v", got.Assignees)
	}

	cmd, _ = e.ToggleAssignee("1", "u1")
	drive(t, e, cmd)
	got, _ = e.Task("1")
	if len(got.Assignees) != 0 {
		t.Fatalf("expected assignee removed: %+v", got.Assignees)
	}
}
