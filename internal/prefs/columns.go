package prefs

const (
	TitleColumn = "title"

	// MinColumnWidth is the narrowest a fixed-width column can be resized to.
	MinColumnWidth = 40
)

// Column describes one table column. Width 0 means the column takes the remaining
// space.
type Column struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Width    int    `json:"width"`
	Visible  bool   `json:"visible"`
	Sortable bool   `json:"sortable"`
}

type Columns []Column

func DefaultColumns() Columns {
	return Columns{
		{Key: "checkbox", Label: "", Width: 40, Visible: true},
		{Key: TitleColumn, Label: "Task", Width: 0, Visible: true, Sortable: true},
		{Key: "status", Label: "Status", Width: 120, Visible: true, Sortable: true},
		{Key: "priority", Label: "Priority", Width: 100, Visible: true, Sortable: true},
		{Key: "assignees", Label: "Assignee", Width: 150, Visible: true},
		{Key: "dueDate", Label: "Due Date", Width: 120, Visible: true, Sortable: true},
		{Key: "tags", Label: "Tags", Width: 150, Visible: true},
		{Key: "milestone", Label: "Milestone", Width: 150, Sortable: true},
		{Key: "startDate", Label: "Start Date", Width: 120, Sortable: true},
		{Key: "subtasks", Label: "Subtasks", Width: 80},
	}
}

func (c Columns) clone() Columns {
	return append(Columns(nil), c...)
}

func (c Columns) IndexOf(key string) int {
	for i, col := range c {
		if col.Key == key {
			return i
		}
	}
	return -1
}

func (c Columns) Get(key string) (Column, bool) {
	if i := c.IndexOf(key); i >= 0 {
		return c[i], true
	}
	return Column{}, false
}

func (c Columns) Visible() Columns {
	var out Columns
	for _, col := range c {
		if col.Visible {
			out = append(out, col)
		}
	}
	return out
}

// Toggle flips a column's visibility. The title column is always visible.
func (c Columns) Toggle(key string) (Columns, bool) {
	i := c.IndexOf(key)
	if key == TitleColumn || i < 0 {
		return c, false
	}
	out := c.clone()
	out[i].Visible = !out[i].Visible
	return out, true
}

// SetVisible forces visibility; it reports whether anything changed.
func (c Columns) SetVisible(key string, visible bool) (Columns, bool) {
	i := c.IndexOf(key)
	if i < 0 || c[i].Visible == visible || (key == TitleColumn && !visible) {
		return c, false
	}
	out := c.clone()
	out[i].Visible = visible
	return out, true
}

// ShowIfHidden makes the column visible, used when a field of that column changes
// elsewhere.
func (c Columns) ShowIfHidden(key string) (Columns, bool) {
	return c.SetVisible(key, true)
}

// Move relocates the column at from to index to. Moves from or onto the title column's
// slot are refused.
func (c Columns) Move(from, to int) (Columns, bool) {
	title := c.IndexOf(TitleColumn)
	if from < 0 || to < 0 || from >= len(c) || to >= len(c) || from == to {
		return c, false
	}
	if from == title || to == title {
		return c, false
	}
	out := c.clone()
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append(Columns{moved}, out[to:]...)...)
	return out, true
}

func (c Columns) Resize(key string, width int) (Columns, bool) {
	i := c.IndexOf(key)
	if i < 0 {
		return c, false
	}
	if width < MinColumnWidth {
		width = MinColumnWidth
	}
	if c[i].Width == width {
		return c, false
	}
	out := c.clone()
	out[i].Width = width
	return out, true
}

// SavedColumn is the persisted subset of a column.
type SavedColumn struct {
	Key     string `json:"key"`
	Visible bool   `json:"visible"`
	Width   int    `json:"width"`
}

func (c Columns) Saved() []SavedColumn {
	out := make([]SavedColumn, 0, len(c))
	for _, col := range c {
		out = append(out, SavedColumn{Key: col.Key, Visible: col.Visible, Width: col.Width})
	}
	return out
}

// MergeColumns applies saved column state onto the defaults: saved keys unknown to the
// defaults are dropped, saved order/visibility/width are kept, and defaults missing
// from the saved list are appended in default order.
func MergeColumns(saved []SavedColumn, defaults Columns) Columns {
	if len(saved) == 0 {
		return defaults.clone()
	}
	out := make(Columns, 0, len(defaults))
	used := map[string]bool{}
	for _, s := range saved {
		def, ok := defaults.Get(s.Key)
		if !ok || used[s.Key] {
			continue
		}
		used[s.Key] = true
		def.Visible = s.Visible || s.Key == TitleColumn
		if s.Width > 0 {
			def.Width = s.Width
		}
		out = append(out, def)
	}
	for _, def := range defaults {
		if !used[def.Key] {
			out = append(out, def)
		}
	}
	return out
}
