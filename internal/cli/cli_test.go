package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/projection"
)

func runCLI(t *testing.T, args ...string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// isolate keeps the test away from the user's config, .env files and environment.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("TASKLENS_CONFIG_DIR", t.TempDir())
	for _, k := range []string{
		"TASKLENS_BACKEND", "TASKLENS_DIR", "TASKLENS_API_URL", "TASKLENS_REDIS_ADDR",
		"TASKLENS_VIEW_KEY", "TASKLENS_PREFS_DIR", "TASKLENS_LOG_FILE", "TASKLENS_FORMAT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("TASKLENS_LOG_LEVEL", "error")
	t.Setenv("NO_COLOR", "1")
	t.Chdir(t.TempDir())
}

// workspace returns a seeded store dir.
func workspace(t *testing.T) string {
	t.Helper()
	isolate(t)
	dir := filepath.Join(t.TempDir(), ".tasklens")
	var out struct {
		Seeded int `json:"seeded"`
	}
	mustData(t, &out, "--dir", dir, "seed")
	if out.Seeded != 12 {
		t.Fatalf("expected 12 seeded tasks, got %d", out.Seeded)
	}
	return dir
}

func mustData(t *testing.T, into any, args ...string) {
	t.Helper()
	stdout, stderr, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("tasklens %v: %v\nstderr:\n%s", args, err, stderr)
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("tasklens %v: decode envelope: %v\nstdout:\n%s", args, err, stdout)
	}
	if into != nil {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("tasklens %v: decode data: %v\ndata: %s", args, err, env.Data)
		}
	}
}

type listOut struct {
	GroupBy  string            `json:"groupBy"`
	Sort     string            `json:"sort"`
	TaskRows int               `json:"taskRows"`
	Columns  []string          `json:"columns"`
	Items    []projection.Item `json:"items"`
}

func (l listOut) titles() []string {
	var out []string
	for _, it := range l.Items {
		if it.Kind == projection.KindTask {
			out = append(out, it.Row.Task.Title)
		}
	}
	return out
}

func (l listOut) id(t *testing.T, title string) string {
	t.Helper()
	for _, it := range l.Items {
		if it.Kind == projection.KindTask && it.Row.Task.Title == title {
			return it.Row.Task.ID
		}
	}
	t.Fatalf("no row titled %q in %v", title, l.titles())
	return ""
}

func list(t *testing.T, dir string, args ...string) listOut {
	t.Helper()
	var out listOut
	mustData(t, &out, append([]string{"--dir", dir, "list"}, args...)...)
	return out
}

func TestSeedAndList(t *testing.T) {
	dir := workspace(t)

	got := list(t, dir)
	want := []string{"Ship onboarding flow", "Billing migration", "Fix flaky login test", "Quarterly roadmap", "Archive old dashboards"}
	if diff := cmp.Diff(want, got.titles()); diff != "" {
		t.Fatalf("roots (-want +got):\n%s", diff)
	}
	if got.GroupBy != "none" || got.Sort != "position:asc" || got.TaskRows != 5 {
		t.Fatalf("unexpected view: %+v", got)
	}

	var again struct {
		Seeded int `json:"seeded"`
	}
	mustData(t, &again, "--dir", dir, "seed")
	if again.Seeded != 0 {
		t.Fatalf("seeding a filled store should be a no-op, got %d", again.Seeded)
	}
}

func TestList_ViewFlagsAreSavedOnlyWithSave(t *testing.T) {
	dir := workspace(t)

	if got := list(t, dir, "--group", "status"); got.GroupBy != "status" {
		t.Fatalf("groupBy = %q", got.GroupBy)
	}
	if got := list(t, dir); got.GroupBy != "none" {
		t.Fatalf("one-off grouping leaked into the saved view: %q", got.GroupBy)
	}
	list(t, dir, "--group", "status", "--sort", "title:desc", "--save")
	got := list(t, dir)
	if got.GroupBy != "status" || got.Sort != "title:desc" {
		t.Fatalf("saved view not restored: %+v", got)
	}
	if got.Items[0].Kind != projection.KindGroup {
		t.Fatalf("expected a group header first, got %s", got.Items[0].Kind)
	}

	// Another view key has its own preference.
	var other listOut
	mustData(t, &other, "--dir", dir, "--view", "other", "list")
	if other.GroupBy != "none" {
		t.Fatalf("view %q should start from defaults, got %q", "other", other.GroupBy)
	}
}

func TestList_SearchAndExpand(t *testing.T) {
	dir := workspace(t)

	got := list(t, dir, "--search", "import")
	titles := got.titles()
	for _, want := range []string{"Ship onboarding flow", "Sample project import", "Import endpoint"} {
		if !contains(titles, want) {
			t.Fatalf("search rows %v missing %q", titles, want)
		}
	}
	if contains(titles, "Billing migration") {
		t.Fatalf("search rows %v include a non-match", titles)
	}

	if got := list(t, dir, "--expand-all"); got.TaskRows != 12 {
		t.Fatalf("expand-all rows = %d", got.TaskRows)
	}
	got = list(t, dir, "--expand", "Billing migration")
	want := []string{"Ship onboarding flow", "Billing migration", "Export legacy invoices", "Dual-write period", "Fix flaky login test", "Quarterly roadmap", "Archive old dashboards"}
	if diff := cmp.Diff(want, got.titles()); diff != "" {
		t.Fatalf("expanded rows (-want +got):\n%s", diff)
	}
}

func TestList_Table(t *testing.T) {
	dir := workspace(t)
	stdout, stderr, err := runCLI(t, "--dir", dir, "--format", "table", "list", "--group", "priority")
	if err != nil {
		t.Fatalf("list: %v\n%s", err, stderr)
	}
	out := string(stdout)
	for _, want := range []string{"Status", "▾ High (2)", "Ship onboarding flow"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestSet_ResolvesApproximateTitle(t *testing.T) {
	dir := workspace(t)

	var task model.Task
	mustData(t, &task, "--dir", dir, "set", "onboard", "status", "completed")
	if task.Title != "Ship onboarding flow" || task.Status.Value != "completed" || task.Status.Label != "Completed" {
		t.Fatalf("unexpected task after set: %+v", task)
	}

	// Children are found too, which needs the whole tree.
	mustData(t, &task, "--dir", dir, "set", "Import endpoint", "dueDate", "2030-01-15")
	if task.DueDate == nil || task.DueDate.String() != "2030-01-15" {
		t.Fatalf("due date not set: %+v", task.DueDate)
	}
	var cleared model.Task
	mustData(t, &cleared, "--dir", dir, "set", task.ID, "dueDate", "")
	if cleared.DueDate != nil {
		t.Fatalf("empty value should clear the date")
	}

	if _, _, err := runCLI(t, "--dir", dir, "set", "Import endpoint", "dueDate", "someday"); err == nil {
		t.Fatalf("expected an invalid date to fail")
	}
	if _, _, err := runCLI(t, "--dir", dir, "set", "Import endpoint", "description", "x"); !errors.Is(err, mutate.ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	if _, _, err := runCLI(t, "--dir", dir, "set", "zzzz", "title", "x"); err == nil {
		t.Fatalf("expected an unknown task to fail")
	}
}

func TestAssign(t *testing.T) {
	dir := workspace(t)

	var task model.Task
	mustData(t, &task, "--dir", dir, "assign", "Quarterly roadmap", "grace")
	if len(task.Assignees) != 1 || task.Assignees[0].ID != "u-grace" {
		t.Fatalf("assignees = %+v", task.Assignees)
	}
	// Assigning again is a no-op.
	mustData(t, &task, "--dir", dir, "assign", "Quarterly roadmap", "u-grace")
	if len(task.Assignees) != 1 {
		t.Fatalf("assignees = %+v", task.Assignees)
	}
	var removed model.Task
	mustData(t, &removed, "--dir", dir, "assign", "--remove", "Quarterly roadmap", "Grace Hopper")
	if len(removed.Assignees) != 0 {
		t.Fatalf("assignee not removed: %+v", removed.Assignees)
	}
}

func TestCreate(t *testing.T) {
	dir := workspace(t)
	roots := list(t, dir)
	billing := roots.id(t, "Billing migration")

	var sub model.Task
	mustData(t, &sub, "--dir", dir, "create", "--title", "Load test", "--parent", "Billing migration")
	if sub.Parent() != billing || sub.Milestone() != "ms-launch" {
		t.Fatalf("subtask should inherit parent and milestone: %+v", sub)
	}

	var next model.Task
	mustData(t, &next, "--dir", dir, "create", "Rollback plan", "--below", "Dual-write period")
	if next.Parent() != billing {
		t.Fatalf("adjacent task should share the target's parent: %+v", next)
	}

	var grouped model.Task
	mustData(t, &grouped, "--dir", dir, "create", "Triage", "--group", "status", "--group-key", "in_review")
	if grouped.Status.Value != "in_review" || grouped.Parent() != "" {
		t.Fatalf("bucket defaults not applied: %+v", grouped)
	}

	if got := list(t, dir, "--expand-all"); got.TaskRows != 15 {
		t.Fatalf("expected 15 tasks after creating 3, got %d", got.TaskRows)
	}
	if _, _, err := runCLI(t, "--dir", dir, "create", "X", "--parent", "Billing migration", "--below", "Quarterly roadmap"); err == nil {
		t.Fatalf("expected conflicting placement flags to fail")
	}
}

func TestMovePromoteDemote(t *testing.T) {
	dir := workspace(t)

	var moved model.Task
	mustData(t, &moved, "--dir", dir, "move", "Quarterly roadmap", "--before", "Ship onboarding flow")
	if got := list(t, dir).titles(); got[0] != "Quarterly roadmap" {
		t.Fatalf("roots after move = %v", got)
	}

	all := list(t, dir, "--expand-all")
	ship := all.id(t, "Ship onboarding flow")
	sample := all.id(t, "Sample project import")

	mustData(t, &moved, "--dir", dir, "promote", "Write fixture tasks")
	if moved.Parent() != ship {
		t.Fatalf("promoted task should move under the grandparent, got parent %q", moved.Parent())
	}
	mustData(t, &moved, "--dir", dir, "demote", "Write fixture tasks")
	if moved.Parent() != sample {
		t.Fatalf("demoted task should move under the sibling above, got parent %q", moved.Parent())
	}

	mustData(t, &moved, "--dir", dir, "move", "Fix flaky login test", "--into", "Archive old dashboards")
	if moved.Parent() != all.id(t, "Archive old dashboards") {
		t.Fatalf("move --into should re-parent, got %q", moved.Parent())
	}

	if _, _, err := runCLI(t, "--dir", dir, "move", "Ship onboarding flow", "--into", "Import endpoint"); err == nil {
		t.Fatalf("expected a move into its own subtree to fail")
	}
	if _, _, err := runCLI(t, "--dir", dir, "promote", "Billing migration"); err == nil {
		t.Fatalf("expected promoting a root task to fail")
	}
}

func TestBulk(t *testing.T) {
	dir := workspace(t)

	var res bulkResult
	mustData(t, &res, "--dir", dir, "bulk", "set", "Quarterly roadmap", "Import endpoint", "--status", "completed", "--priority", "high")
	if res.Count != 2 || len(res.Tasks) != 2 {
		t.Fatalf("unexpected bulk result: %+v", res)
	}
	for _, tr := range res.Tasks {
		if tr.Status != "completed" || tr.Priority != "high" {
			t.Fatalf("task not updated: %+v", tr)
		}
	}
	if _, _, err := runCLI(t, "--dir", dir, "bulk", "set", "Quarterly roadmap"); !errors.Is(err, mutate.ErrEmptyBulkUpdate) {
		t.Fatalf("expected ErrEmptyBulkUpdate, got %v", err)
	}

	mustData(t, &res, "--dir", dir, "bulk", "delete", "Billing migration", "Copy review")
	if res.Count != 2 {
		t.Fatalf("delete count = %d", res.Count)
	}
	got := list(t, dir, "--expand-all")
	if got.TaskRows != 8 || contains(got.titles(), "Export legacy invoices") {
		t.Fatalf("subtasks should be deleted with their parent: %v", got.titles())
	}
}

type columnOut struct {
	Key     string `json:"key"`
	Width   int    `json:"width"`
	Visible bool   `json:"visible"`
}

func columnByKey(cols []columnOut, key string) columnOut {
	for _, c := range cols {
		if c.Key == key {
			return c
		}
	}
	return columnOut{}
}

func TestColumns(t *testing.T) {
	dir := workspace(t)

	var cols []columnOut
	mustData(t, &cols, "--dir", dir, "columns", "hide", "tags")
	if columnByKey(cols, "tags").Visible {
		t.Fatalf("tags still visible")
	}
	mustData(t, &cols, "--dir", dir, "columns", "width", "status", "200")
	mustData(t, &cols, "--dir", dir, "columns", "move", "status", "3")
	if cols[3].Key != "status" || cols[3].Width != 200 {
		t.Fatalf("status should be fourth and 200 wide: %+v", cols[3])
	}

	mustData(t, &cols, "--dir", dir, "columns", "list")
	if columnByKey(cols, "tags").Visible || cols[3].Key != "status" {
		t.Fatalf("column changes not persisted: %+v", cols)
	}
	if got := list(t, dir); contains(got.Columns, "tags") {
		t.Fatalf("list still shows hidden column: %v", got.Columns)
	}

	if _, _, err := runCLI(t, "--dir", dir, "columns", "hide", "title"); err == nil {
		t.Fatalf("expected hiding the title column to fail")
	}
	if _, _, err := runCLI(t, "--dir", dir, "columns", "move", "status", "1"); err == nil {
		t.Fatalf("expected a move onto the title slot to fail")
	}
	mustData(t, &cols, "--dir", dir, "columns", "width", "priority", "10")
	if w := columnByKey(cols, "priority").Width; w != 40 {
		t.Fatalf("narrow widths should clamp to 40, got %d", w)
	}

	mustData(t, &cols, "--dir", dir, "columns", "reset")
	if !columnByKey(cols, "tags").Visible || cols[3].Key != "priority" || columnByKey(cols, "status").Width != 120 {
		t.Fatalf("reset did not restore defaults: %+v", cols)
	}
}

func TestShow(t *testing.T) {
	dir := workspace(t)

	var out showPayload
	mustData(t, &out, "--dir", dir, "show", "Import endpoint")
	if diff := cmp.Diff([]string{"Ship onboarding flow", "Sample project import"}, out.Path); diff != "" {
		t.Fatalf("path (-want +got):\n%s", diff)
	}
	if out.Milestone != "Beta" {
		t.Fatalf("milestone = %q", out.Milestone)
	}

	var root showPayload
	mustData(t, &root, "--dir", dir, "show", "Ship onboarding flow")
	if len(root.Children) != 3 || len(root.Path) != 0 {
		t.Fatalf("expected 3 children and no path, got %+v", root)
	}

	stdout, stderr, err := runCLI(t, "--dir", dir, "--format", "table", "show", "Ship onboarding flow")
	if err != nil {
		t.Fatalf("show: %v\n%s", err, stderr)
	}
	for _, want := range []string{"Ship onboarding flow", "first task in under a minute", "Design welcome screen"} {
		if !strings.Contains(string(stdout), want) {
			t.Fatalf("markdown output missing %q:\n%s", want, stdout)
		}
	}
}

func TestPublish(t *testing.T) {
	dir := workspace(t)
	to := filepath.Join(t.TempDir(), "site")

	var res struct {
		Written []string `json:"written"`
	}
	mustData(t, &res, "--dir", dir, "publish", "--to", to)
	if len(res.Written) != 13 {
		t.Fatalf("expected index.md plus 12 pages, got %d", len(res.Written))
	}
	if _, _, err := runCLI(t, "--dir", dir, "publish", "--to", to); err == nil {
		t.Fatalf("expected existing files to be refused without --overwrite")
	}
	mustData(t, &res, "--dir", dir, "publish", "--to", to, "--task", "Billing migration", "--overwrite")
	if len(res.Written) != 4 {
		t.Fatalf("expected index.md plus 3 pages, got %v", res.Written)
	}
}

func TestBoard(t *testing.T) {
	dir := workspace(t)

	var cols []boardColumn
	mustData(t, &cols, "--dir", dir, "board")
	byStatus := map[string][]string{}
	for _, c := range cols {
		for _, card := range c.Cards {
			byStatus[c.Status] = append(byStatus[c.Status], card.Title)
		}
	}
	if diff := cmp.Diff([]string{"Billing migration", "Quarterly roadmap"}, byStatus["todo"]); diff != "" {
		t.Fatalf("todo column (-want +got):\n%s", diff)
	}

	stdout, _, err := runCLI(t, "--dir", dir, "--format", "table", "board", "--width", "150")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if !strings.Contains(string(stdout), "Billing migration") {
		t.Fatalf("board table missing a card:\n%s", stdout)
	}

	if _, _, err := runCLI(t, "--dir", dir, "board", "--watch"); err == nil {
		t.Fatalf("expected --watch without a shared bus to fail")
	}
}

// syncBuffer is a bytes.Buffer safe for a writer and a concurrent reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBoardWatch_RedrawsOnChangesFromOtherProcesses(t *testing.T) {
	dir := workspace(t)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	t.Setenv("TASKLENS_REDIS_ADDR", mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out, errOut syncBuffer
	watch := NewRootCmd()
	watch.SetOut(&out)
	watch.SetErr(&errOut)
	watch.SetArgs([]string{"--dir", dir, "board", "--watch"})
	done := make(chan error, 1)
	go func() { done <- watch.ExecuteContext(ctx) }()

	frames := func() []string {
		return strings.Split(strings.TrimSpace(out.String()), "\n")
	}
	waitFor(t, "the first frame", func() bool { return strings.Contains(out.String(), "\n") })
	if first := frames(); len(first) != 1 || !strings.Contains(first[0], "Archive old dashboards") {
		t.Fatalf("unexpected first frame: %v", first)
	}

	mustData(t, nil, "--dir", dir, "bulk", "delete", "Archive old dashboards")
	waitFor(t, "a redraw", func() bool { return len(frames()) >= 2 })
	fs := frames()
	if last := fs[len(fs)-1]; strings.Contains(last, "Archive old dashboards") || !strings.Contains(last, "Billing migration") {
		t.Fatalf("redrawn frame still shows the deleted card: %s", last)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch: %v\n%s", err, errOut.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not stop on cancel")
	}
}

func TestRemoteBackendNeedsURL(t *testing.T) {
	isolate(t)
	_, stderr, err := runCLI(t, "--backend", "remote", "list")
	if err == nil || !strings.Contains(string(stderr), "api url") {
		t.Fatalf("expected a missing api url error, got %v\n%s", err, stderr)
	}
}

func TestPick(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	labels := []string{"Ship onboarding flow", "Billing migration", "Fix login", "Fix logout"}

	cases := []struct {
		q       string
		want    string
		wantErr error
	}{
		{q: "c", want: "c"},
		{q: "billing MIGRATION", want: "b"},
		{q: "onbrd", want: "a"},
		{q: "zzz", wantErr: mutate.NotFoundError{Kind: "task", ID: "zzz"}},
	}
	for _, tc := range cases {
		got, err := pick("task", tc.q, ids, labels)
		if tc.wantErr != nil {
			if err == nil || err.Error() != tc.wantErr.Error() {
				t.Fatalf("pick(%q) error = %v, want %v", tc.q, err, tc.wantErr)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("pick(%q) = %q, %v; want %q", tc.q, got, err, tc.want)
		}
	}

	dup := []string{"Standup", "standup"}
	var amb AmbiguousError
	if _, err := pick("task", "STANDUP", []string{"x", "y"}, dup); !errors.As(err, &amb) || len(amb.Candidates) != 2 {
		t.Fatalf("expected an ambiguous match, got %v", err)
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func TestDocs(t *testing.T) {
	isolate(t)

	var list docsList
	mustData(t, &list, "docs")
	if diff := cmp.Diff([]string{"config", "events", "fields", "views"}, list.Topics); diff != "" {
		t.Fatalf("topics (-want +got):\n%s", diff)
	}
	var topic docsTopic
	mustData(t, &topic, "docs", "Fields")
	if !strings.Contains(topic.Markdown, "# Editable fields") {
		t.Fatalf("unexpected markdown:\n%s", topic.Markdown)
	}
	if _, _, err := runCLI(t, "docs", "nope"); err == nil {
		t.Fatalf("expected an unknown topic to fail")
	}
}
