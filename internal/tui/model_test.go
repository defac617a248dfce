package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"

	"tasklens/internal/engine"
	"tasklens/internal/projection"
	"tasklens/internal/sorting"
	"tasklens/internal/store"
)

// drive runs cmd and its follow-ups through the model. Commands that do not finish
// quickly (timers) are dropped.
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		done := make(chan tea.Msg, 1)
		go func() { done <- next() }()
		var msg tea.Msg
		select {
		case msg = <-done:
		case <-time.After(300 * time.Millisecond):
			continue
		}
		switch msg := msg.(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, follow := m.Update(msg)
			queue = append(queue, follow)
		}
	}
}

func press(t *testing.T, m *Model, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd := m.Update(msg)
		drive(t, m, cmd)
	}
}

func newModel(t *testing.T) (*Model, *engine.Engine) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if _, err := st.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cat, err := st.Catalog(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	eng := engine.New(engine.Options{Backend: st, Prefs: st, Catalog: cat})
	m, err := New(ctx, eng, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	drive(t, m, m.Init())
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	return m, eng
}

func rowTitles(e *engine.Engine) []string {
	var out []string
	for _, it := range e.Projection().Items {
		if it.Kind == projection.KindTask {
			out = append(out, it.Row.Task.Title)
		}
	}
	return out
}

func TestModel_ExpandLoadsChildren(t *testing.T) {
	m, eng := newModel(t)
	if got := len(rowTitles(eng)); got != 5 {
		t.Fatalf("expected 5 roots, got %d", got)
	}
	press(t, m, "j", "k", "l")
	titles := rowTitles(eng)
	if len(titles) != 8 || titles[1] != "Design welcome screen" {
		t.Fatalf("expected first root expanded, got %v", titles)
	}
	view := xansi.Strip(m.View())
	if !strings.Contains(view, "Design welcome screen") || !strings.Contains(view, "8 tasks") {
		t.Fatalf("view missing expanded rows:\n%s", view)
	}

	press(t, m, "j", "h")
	if m.cursor != titlesID(eng, "Ship onboarding flow") {
		t.Fatalf("collapse on a leaf should move to its parent")
	}
}

func titlesID(e *engine.Engine, title string) string {
	for _, t := range e.Tasks() {
		if t.Title == title {
			return t.ID
		}
	}
	return ""
}

func TestModel_EditTitleCommits(t *testing.T) {
	m, eng := newModel(t)
	id := titlesID(eng, "Ship onboarding flow")
	press(t, m, "e")
	if m.mode != modeEdit {
		t.Fatalf("expected edit mode")
	}
	m.input.SetValue("")
	press(t, m, "Onboarding v2", "enter")
	got, _ := eng.Task(id)
	if got.Title != "Onboarding v2" || m.mode != modeNormal {
		t.Fatalf("title not committed: %q mode=%d", got.Title, m.mode)
	}
}

func TestModel_InvalidDueDateKeepsEditor(t *testing.T) {
	m, _ := newModel(t)
	press(t, m, "d")
	m.input.SetValue("")
	press(t, m, "someday", "enter")
	if m.mode != modeEdit || !m.flashError || m.flash == "" {
		t.Fatalf("expected editor to stay open with an error, mode=%d flash=%q", m.mode, m.flash)
	}
	press(t, m, "esc")
	if m.mode != modeNormal {
		t.Fatalf("esc should close the editor")
	}
}

func TestModel_SearchFiltersAndEscClears(t *testing.T) {
	m, eng := newModel(t)
	press(t, m, "/", "billing")
	if eng.Query() != "billing" {
		t.Fatalf("query = %q", eng.Query())
	}
	titles := rowTitles(eng)
	if len(titles) == 0 || titles[0] != "Billing migration" {
		t.Fatalf("unexpected search rows %v", titles)
	}
	press(t, m, "esc")
	if eng.SearchActive() || len(rowTitles(eng)) != 5 {
		t.Fatalf("esc should clear the search")
	}
}

func TestModel_StatusCycleAndCreateBelow(t *testing.T) {
	m, eng := newModel(t)
	id := titlesID(eng, "Ship onboarding flow")
	press(t, m, "s")
	if got, _ := eng.Task(id); got.Status.Value != "in_review" {
		t.Fatalf("status = %s", got.Status.Value)
	}

	press(t, m, "n", "Fresh task", "enter")
	titles := rowTitles(eng)
	if len(titles) != 6 || titles[1] != "Fresh task" {
		t.Fatalf("new task should sit below the cursor row, got %v", titles)
	}
}

func TestModel_DeleteNeedsConfirmation(t *testing.T) {
	m, eng := newModel(t)
	press(t, m, "D", "n")
	if len(rowTitles(eng)) != 5 || m.flash != "Delete cancelled" {
		t.Fatalf("delete should have been cancelled, flash=%q", m.flash)
	}
	press(t, m, "D", "y")
	if titles := rowTitles(eng); len(titles) != 4 || titles[0] != "Billing migration" {
		t.Fatalf("expected first root deleted, got %v", titles)
	}
}

func TestNextSort(t *testing.T) {
	cols := []string{"title", "status"}
	st := sorting.Default()
	var got []string
	for i := 0; i < 5; i++ {
		st = nextSort(st, cols)
		got = append(got, st.String())
	}
	want := []string{"title:asc", "title:desc", "status:asc", "status:desc", "position:asc"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSibling(t *testing.T) {
	row := func(id, parent string, depth int) projection.Item {
		r := &projection.TaskRow{Depth: depth}
		r.Task.ID = id
		if parent != "" {
			p := parent
			r.Task.ParentID = &p
		}
		return projection.Item{Kind: projection.KindTask, Row: r}
	}
	items := []projection.Item{
		row("a", "", 0),
		row("a1", "a", 1),
		row("a2", "a", 1),
		row("b", "", 0),
	}
	if id, ok := sibling(items, 3, -1); !ok || id != "a" {
		t.Fatalf("previous root sibling = %q %v", id, ok)
	}
	if id, ok := sibling(items, 1, 1); !ok || id != "a2" {
		t.Fatalf("next child sibling = %q %v", id, ok)
	}
	if _, ok := sibling(items, 2, 1); ok {
		t.Fatalf("last child has no next sibling")
	}
}
