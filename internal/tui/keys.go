package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Expand      key.Binding
	Collapse    key.Binding
	Toggle      key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding

	Select    key.Binding
	SelectAll key.Binding

	Search key.Binding
	Group  key.Binding
	Sort   key.Binding

	EditTitle key.Binding
	EditDue   key.Binding
	Status    key.Binding
	Priority  key.Binding

	NewBelow   key.Binding
	NewSubtask key.Binding
	Duplicate  key.Binding
	Delete     key.Binding

	MoveUp   key.Binding
	MoveDown key.Binding
	Promote  key.Binding
	Demote   key.Binding

	Help key.Binding
	Quit key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Expand:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "expand")),
		Collapse:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "collapse")),
		Toggle:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "toggle")),
		ExpandAll:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
		CollapseAll: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),

		Select:    key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "select")),
		SelectAll: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "select all")),

		Search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Group:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "group by")),
		Sort:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sort column")),

		EditTitle: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit title")),
		EditDue:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "due date")),
		Status:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "next status")),
		Priority:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "next priority")),

		NewBelow:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new below")),
		NewSubtask: key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new subtask")),
		Duplicate:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "duplicate")),
		Delete:     key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete")),

		MoveUp:   key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		MoveDown: key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		Promote:  key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "promote")),
		Demote:   key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "demote")),

		Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Search, k.Group, k.Status, k.NewBelow, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Expand, k.Collapse, k.Toggle, k.ExpandAll, k.CollapseAll},
		{k.Select, k.SelectAll, k.Search, k.Group, k.Sort},
		{k.EditTitle, k.EditDue, k.Status, k.Priority},
		{k.NewBelow, k.NewSubtask, k.Duplicate, k.Delete},
		{k.MoveUp, k.MoveDown, k.Promote, k.Demote, k.Help, k.Quit},
	}
}
