package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tasklens/internal/model"
	"tasklens/internal/mutate"
)

func strPtr(s string) *string { return &s }

func TestBulkMutate_FailureIsAtomic(t *testing.T) {
	be := newFakeBackend()
	be.bulkErr = errBoom
	e := newTestEngine(be, nil, task("a", "", 0), task("b", "", 1), task("c", "", 2))
	e.SelectAll(true)
	before := e.Tasks()

	cmd, err := e.BulkMutate(mutate.BulkUpdate{Status: strPtr("completed")})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if _, err := e.BulkMutate(mutate.BulkUpdate{Status: strPtr("todo")}); !errors.Is(err, ErrBulkInFlight) {
		t.Fatalf("expected ErrBulkInFlight, got %v", err)
	}
	drive(t, e, cmd)

	if len(be.bulkCalls) != 1 || len(be.bulkCalls[0]) != 3 {
		t.Fatalf("expected one call carrying all ids, got %v", be.bulkCalls)
	}
	if diff := cmp.Diff(before, e.Tasks()); diff != "" {
		t.Fatalf("records changed after failed bulk (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, e.Selected()); diff != "" {
		t.Fatalf("selection not retained (-want +got):\n%s", diff)
	}
	if n := e.TakeNotices(); len(n) != 1 || n[0].Level != LevelError {
		t.Fatalf("expected an error notice, got %+v", n)
	}
	if e.BulkInFlight() {
		t.Fatalf("bulk flag not cleared")
	}
}

func TestBulkMutate_SuccessAppliesAndClearsSelection(t *testing.T) {
	be := newFakeBackend()
	e := newTestEngine(be, nil, task("a", "", 0), task("b", "", 1), task("c", "", 2))
	e.Select("a", true)
	e.Select("c", true)

	cmd, err := e.BulkMutate(mutate.BulkUpdate{Priority: strPtr("high"), MilestoneID: strPtr("m1")})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	drive(t, e, cmd)

	for _, id := range []string{"a", "c"} {
		got, _ := e.Task(id)
		if got.Priority.Value != "high" || got.Milestone() != "m1" {
			t.Fatalf("%s not updated: %+v", id, got)
		}
	}
	if got, _ := e.Task("b"); got.Priority.Value == "high" {
		t.Fatalf("unselected task changed")
	}
	if len(e.Selected()) != 0 {
		t.Fatalf("expected selection cleared")
	}
}

func TestBulk_Validation(t *testing.T) {
	e := newTestEngine(newFakeBackend(), nil, task("a", "", 0))
	if _, err := e.BulkMutate(mutate.BulkUpdate{Status: strPtr("todo")}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	e.SelectAll(true)
	if _, err := e.BulkMutate(mutate.BulkUpdate{}); !errors.Is(err, mutate.ErrEmptyBulkUpdate) {
		t.Fatalf("expected ErrEmptyBulkUpdate, got %v", err)
	}
}

func TestSelection_OnlyProjectedRows(t *testing.T) {
	e := newTestEngine(newFakeBackend(), nil, task("p", "", 0), task("c", "p", 0), task("q", "", 1))

	if e.Select("c", true) {
		t.Fatalf("hidden child must not be selectable")
	}
	e.SelectAll(true)
	if diff := cmp.Diff([]string{"p", "q"}, e.Selected()); diff != "" {
		t.Fatalf("select all mismatch (-want +got):\n%s", diff)
	}

	e.SetQuery("q")
	if diff := cmp.Diff([]string{"q"}, e.Selected()); diff != "" {
		t.Fatalf("selection not pruned to projection (-want +got):\n%s", diff)
	}
}

func TestBulkDelete_RemovesSubtreesAndRecountsParent(t *testing.T) {
	be := newFakeBackend()
	p := task("p", "", 0)
	p.SubtaskCount = 2
	done := task("c2", "p", 1)
	done.Status = model.StatusRef{Value: "completed"}
	e := newTestEngine(be, nil, p, task("c1", "p", 0), done, task("g", "c1", 0))
	drive(t, e, e.Expand("p"))
	drive(t, e, e.Expand("c1"))

	e.Select("c1", true)
	cmd, err := e.BulkDelete()
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	drive(t, e, cmd)

	if _, ok := e.Task("g"); ok {
		t.Fatalf("expected descendant removed with its parent")
	}
	got, _ := e.Task("p")
	if got.SubtaskCount != 1 || got.CompletedSubtaskCount != 1 {
		t.Fatalf("unexpected parent counts: %d/%d", got.CompletedSubtaskCount, got.SubtaskCount)
	}
	if diff := cmp.Diff([]string{"p@0", "c2@1"}, rows(e.Projection())); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestBulkDelete_FailureKeepsEverything(t *testing.T) {
	be := newFakeBackend()
	be.deleteErr = errBoom
	e := newTestEngine(be, nil, task("a", "", 0), task("b", "", 1))
	e.SelectAll(true)
	cmd, _ := e.BulkDelete()
	drive(t, e, cmd)
	if len(e.Tasks()) != 2 || len(e.Selected()) != 2 {
		t.Fatalf("expected nothing removed and selection kept")
	}
}
