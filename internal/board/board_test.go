package board

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/google/go-cmp/cmp"

	"tasklens/internal/events"
	"tasklens/internal/grouping"
	"tasklens/internal/model"
)

func card(id, title, status string, pos float64) model.Task {
	t := model.Task{ID: id, Title: title, Status: model.StatusRef{Value: status}, Position: pos}
	model.Normalize(&t)
	return t
}

func columnIDs(cols []Column) map[string][]string {
	out := map[string][]string{}
	for _, c := range cols {
		for _, k := range c.Cards {
			out[c.Label] = append(out[c.Label], k.Task.ID)
		}
	}
	return out
}

func fixture() *Board {
	child := card("c", "Child", "todo", 0)
	child.ParentID = model.StringPtr("a")
	return New([]model.Task{
		card("b", "Second", "todo", 2),
		card("a", "First", "todo", 1),
		card("r", "Review me", "in_review", 0),
		card("x", "Odd", "blocked", 0),
		child,
	}, grouping.Catalog{}, "board")
}

func TestColumns_RootsByStatusInPositionOrder(t *testing.T) {
	b := fixture()
	if b.Len() != 4 {
		t.Fatalf("children must not become cards, got %d", b.Len())
	}
	want := map[string][]string{
		"To Do":     {"a", "b"},
		"In Review": {"r"},
		"(other)":   {"x"},
	}
	if diff := cmp.Diff(want, columnIDs(b.Columns())); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_MovesCardAndIgnoresOwnEvents(t *testing.T) {
	b := fixture()
	sel := Clamp(b.Columns(), Selection{TaskID: "b"})

	ev := events.Changed("b", "status", "completed", "Shipped")
	ev.Source = "table"
	if !b.Apply(ev) {
		t.Fatalf("expected status change to apply")
	}
	cols := b.Columns()
	got, ok := Selected(cols, sel)
	if !ok || got.Task.ID != "b" || got.Task.Status.Label != "Shipped" {
		t.Fatalf("selection should follow the card, got %+v", got)
	}
	if sel = Clamp(cols, sel); cols[sel.Col].StatusID != "completed" {
		t.Fatalf("card should be in the completed column, got %s", cols[sel.Col].StatusID)
	}

	own := events.Changed("a", "title", "Renamed", "")
	own.Source = "board"
	if b.Apply(own) {
		t.Fatalf("own events must be skipped")
	}
	if b.Apply(events.Changed("a", "dueDate", "not a date", "")) {
		t.Fatalf("invalid values must be skipped")
	}
	if b.Apply(events.Changed("c", "title", "child", "")) {
		t.Fatalf("non-card ids must be skipped")
	}
	if !b.Apply(events.Deleted("a", "zzz")) {
		t.Fatalf("expected delete to apply")
	}
	if _, ok := b.Task("a"); ok {
		t.Fatalf("deleted card still present")
	}
}

func TestClamp_EmptyColumn(t *testing.T) {
	cols := fixture().Columns()
	sel := Clamp(cols, Selection{Col: 1, Item: 3})
	if sel.Item != -1 || sel.TaskID != "" {
		t.Fatalf("empty column should clear the item, got %+v", sel)
	}
	if _, ok := Selected(cols, sel); ok {
		t.Fatalf("nothing should be selected")
	}
}

func TestRender_FitsWidthAndShowsCards(t *testing.T) {
	b := fixture()
	out := Render(b.Columns(), Selection{}, model.Today(), 100, 12)
	lines := strings.Split(out, "\n")
	if len(lines) != 12 {
		t.Fatalf("expected 12 lines, got %d", len(lines))
	}
	for i, ln := range lines {
		if w := xansi.StringWidth(ln); w != 100 {
			t.Fatalf("line %d has width %d", i, w)
		}
	}
	plain := xansi.Strip(out)
	for _, s := range []string{"To Do (2)", "First", "Review me", "(other) (1)"} {
		if !strings.Contains(plain, s) {
			t.Fatalf("missing %q in:\n%s", s, plain)
		}
	}
}

func TestWrap(t *testing.T) {
	got := wrap("ship the onboarding flow", 10)
	want := []string{"ship the", "onboarding", "flow"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("wrap mismatch (-want +got):\n%s", diff)
	}
	if got := wrap("abcdefghij", 4); len(got) != 3 || got[2] != "ij" {
		t.Fatalf("long word should be hard cut, got %q", got)
	}
}
