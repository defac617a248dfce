package publish

import (
	"bytes"
	"fmt"
	"strings"

	"tasklens/internal/grouping"
	"tasklens/internal/mutate"
	"tasklens/internal/projection"
	"tasklens/internal/statusutil"
	"tasklens/internal/taskstore"
)

type RenderOptions struct {
	// Links turns subtask and parent references into relative links between task pages.
	Links bool
	// Breadcrumb prefixes the page with the ancestor titles, root first.
	Breadcrumb bool
}

var metaFields = []struct{ label, key string }{
	{"Milestone", "milestone"},
	{"Assignees", "assignees"},
	{"Tags", "tags"},
	{"Start", "startDate"},
	{"Due", "dueDate"},
	{"Subtasks", "subtasks"},
}

// RenderTaskMarkdown renders one task page: title, meta list, description and the
// subtasks present in ix.
func RenderTaskMarkdown(ix *taskstore.Index, cat grouping.Catalog, id string, opt RenderOptions) (string, error) {
	if ix == nil {
		return "", fmt.Errorf("missing index")
	}
	t, ok := ix.Task(strings.TrimSpace(id))
	if !ok {
		return "", mutate.NotFoundError{Kind: "task", ID: id}
	}

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	if opt.Breadcrumb {
		var path []string
		for _, aid := range ix.Ancestors(t.ID) {
			if a, ok := ix.Task(aid); ok {
				path = append([]string{taskRef(a.ID, a.Title, "", opt.Links)}, path...)
			}
		}
		if len(path) > 0 {
			writeLn(strings.Join(path, " › "))
			writeLn("")
		}
	}

	writeLn("# " + strings.TrimSpace(t.Title))
	writeLn("")
	writeLn("- **Status:** " + t.Status.Label)
	writeLn("- **Priority:** " + t.Priority.Label)
	for _, f := range metaFields {
		if v := projection.Cell(t, f.key, cat); v != "" {
			writeLn(fmt.Sprintf("- **%s:** %s", f.label, v))
		}
	}
	writeLn("- **ID:** `" + t.ID + "`")

	if d := strings.TrimSpace(t.Description); d != "" {
		writeLn("")
		writeLn(d)
	}

	children := ix.ChildrenOf(t.ID)
	if len(children) > 0 {
		writeLn("")
		writeLn("## Subtasks")
		writeLn("")
		for _, cid := range children {
			c, ok := ix.Task(cid)
			if !ok {
				continue
			}
			box := " "
			if statusutil.IsEndState(c.Status.Value) {
				box = "x"
			}
			writeLn(fmt.Sprintf("- [%s] %s (%s)", box, taskRef(c.ID, c.Title, "", opt.Links), c.Status.Label))
		}
	}
	return buf.String(), nil
}

// RenderIndexMarkdown renders the task tree under roots as a nested list of links.
func RenderIndexMarkdown(ix *taskstore.Index, title string, roots []string) string {
	var buf bytes.Buffer
	buf.WriteString("# " + strings.TrimSpace(title) + "\n\n")
	for _, id := range roots {
		renderIndexLine(&buf, ix, id, 0)
	}
	return buf.String()
}

func renderIndexLine(buf *bytes.Buffer, ix *taskstore.Index, id string, depth int) {
	if depth > taskstore.MaxWalk {
		return
	}
	t, ok := ix.Task(id)
	if !ok {
		return
	}
	status := ""
	if t.Status.Label != "" {
		status = " (" + t.Status.Label + ")"
	}
	fmt.Fprintf(buf, "%s- %s%s\n", strings.Repeat("  ", depth), taskRef(t.ID, t.Title, tasksDir+"/", true), status)
	for _, cid := range ix.ChildrenOf(id) {
		renderIndexLine(buf, ix, cid, depth+1)
	}
}

// taskRef links to a task page relative to dir.
func taskRef(id, title, dir string, link bool) string {
	title = strings.TrimSpace(title)
	if !link {
		return title
	}
	return "[" + title + "](" + dir + id + ".md)"
}
