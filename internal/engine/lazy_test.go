package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tasklens/internal/model"
)

func TestExpand_LazyLoadsOnceAndCoalesces(t *testing.T) {
	be := newFakeBackend()
	parent := task("1", "", 0)
	parent.SubtaskCount = 1
	be.children["1"] = []model.Task{task("2", "1", 0)}
	e := newTestEngine(be, nil, parent)

	first := e.Expand("1")
	if first == nil {
		t.Fatalf("expected a fetch command")
	}
	if !e.IsLoading("1") {
		t.Fatalf("expected node to be pending")
	}
	if second := e.Expand("1"); second != nil {
		t.Fatalf("expected second expand while pending to issue nothing")
	}
	drive(t, e, first)

	if be.fetches["1"] != 1 {
		t.Fatalf("expected exactly one fetch, got %d", be.fetches["1"])
	}
	want := []string{"1@0", "2@1"}
	if diff := cmp.Diff(want, rows(e.Projection())); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
	if e.IsLoading("1") {
		t.Fatalf("pending flag not cleared")
	}

	// Collapsing and expanding again reuses the loaded children.
	drive(t, e, e.Collapse("1"))
	drive(t, e, e.Expand("1"))
	if be.fetches["1"] != 1 {
		t.Fatalf("expected no refetch, got %d fetches", be.fetches["1"])
	}
}

func TestExpand_PartlyLoadedChildrenRevealWithoutFetch(t *testing.T) {
	be := newFakeBackend()
	parent := task("1", "", 0)
	parent.SubtaskCount = 2
	e := newTestEngine(be, nil, parent, task("2", "1", 0))

	cmd := e.Expand("1")
	if e.IsLoading("1") {
		t.Fatalf("expected no fetch for a node with children present")
	}
	drive(t, e, cmd)
	if len(be.fetches) != 0 {
		t.Fatalf("unexpected fetches: %+v", be.fetches)
	}
	if diff := cmp.Diff([]string{"1@0", "2@1"}, rows(e.Projection())); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_EmptyFetchKeepsChildrenMergedMeanwhile(t *testing.T) {
	be := newFakeBackend()
	parent := task("1", "", 0)
	parent.SubtaskCount = 1
	e := newTestEngine(be, nil, parent)

	cmd := e.Expand("1")
	// A child arrives from elsewhere before the (empty) fetch result lands.
	e.Load([]model.Task{task("2", "1", 0)})
	drive(t, e, cmd)

	if !e.IsExpanded("1") {
		t.Fatalf("expected node with a present child to expand")
	}
	if diff := cmp.Diff([]string{"1@0", "2@1"}, rows(e.Projection())); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_FailureStaysCollapsedAndCanRetry(t *testing.T) {
	be := newFakeBackend()
	be.fetchErr = errBoom
	parent := task("1", "", 0)
	parent.SubtaskCount = 2
	e := newTestEngine(be, nil, parent)

	drive(t, e, e.Expand("1"))
	if e.IsExpanded("1") || e.IsLoading("1") {
		t.Fatalf("expected collapsed, idle node after failure")
	}
	notices := e.TakeNotices()
	if len(notices) != 1 || notices[0].Level != LevelError || !errors.Is(notices[0].Err, errBoom) {
		t.Fatalf("unexpected notices: %+v", notices)
	}

	be.fetchErr = nil
	be.children["1"] = []model.Task{task("a", "1", 0), task("b", "1", 1)}
	drive(t, e, e.Expand("1"))
	if be.fetches["1"] != 2 {
		t.Fatalf("expected retry to fetch again, got %d", be.fetches["1"])
	}
	if diff := cmp.Diff([]string{"1@0", "a@1", "b@1"}, rows(e.Projection())); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_CollapsedWhilePendingMergesButStaysCollapsed(t *testing.T) {
	be := newFakeBackend()
	parent := task("1", "", 0)
	parent.SubtaskCount = 1
	be.children["1"] = []model.Task{task("2", "1", 0)}
	e := newTestEngine(be, nil, parent)

	cmd := e.Expand("1")
	drive(t, e, e.Collapse("1"))
	drive(t, e, cmd)

	if _, ok := e.Task("2"); !ok {
		t.Fatalf("expected fetched child to be merged")
	}
	if e.IsExpanded("1") {
		t.Fatalf("expected node to stay collapsed")
	}
	if diff := cmp.Diff([]string{"1@0"}, rows(e.Projection())); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_ResultForRemovedNodeIsDiscarded(t *testing.T) {
	be := newFakeBackend()
	parent := task("1", "", 0)
	parent.SubtaskCount = 1
	be.children["1"] = []model.Task{task("2", "1", 0)}
	e := newTestEngine(be, nil, parent, task("x", "", 1))

	cmd := e.Expand("1")
	e.removeLocal([]string{"1"})
	drive(t, e, cmd)

	if _, ok := e.Task("2"); ok {
		t.Fatalf("expected stale children to be dropped")
	}
	if diff := cmp.Diff([]string{"x@0"}, rows(e.Projection())); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_EmptyFetchClearsCount(t *testing.T) {
	be := newFakeBackend()
	parent := task("1", "", 0)
	parent.SubtaskCount = 3
	e := newTestEngine(be, nil, parent)

	drive(t, e, e.Expand("1"))
	got, _ := e.Task("1")
	if got.SubtaskCount != 0 {
		t.Fatalf("expected subtask count reset, got %d", got.SubtaskCount)
	}
	if e.Projection().Items[0].Row.HasChildren {
		t.Fatalf("expected node without children")
	}
}

func TestExpandAll_NeverFetches(t *testing.T) {
	be := newFakeBackend()
	a := task("a", "", 0)
	a.SubtaskCount = 1
	e := newTestEngine(be, nil, a, task("b", "", 1), task("b1", "b", 0))

	drive(t, e, e.ExpandAll())
	if !e.IsExpanded("a") || !e.IsExpanded("b") || e.IsExpanded("b1") {
		t.Fatalf("unexpected expansion: a=%v b=%v b1=%v", e.IsExpanded("a"), e.IsExpanded("b"), e.IsExpanded("b1"))
	}
	if len(be.fetches) != 0 {
		t.Fatalf("expand all must not fetch: %+v", be.fetches)
	}
	drive(t, e, e.CollapseAll())
	if diff := cmp.Diff([]string{"a@0", "b@0"}, rows(e.Projection())); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}
