package sorting

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/statusutil"
	"tasklens/internal/taskstore"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

const (
	ColumnPosition  = "position"
	ColumnTitle     = "title"
	ColumnStatus    = "status"
	ColumnPriority  = "priority"
	ColumnDueDate   = "dueDate"
	ColumnStartDate = "startDate"
	ColumnMilestone = "milestone"
)

var sortable = map[string]bool{
	ColumnPosition:  true,
	ColumnTitle:     true,
	ColumnStatus:    true,
	ColumnPriority:  true,
	ColumnDueDate:   true,
	ColumnStartDate: true,
	ColumnMilestone: true,
}

func Sortable(column string) bool {
	return sortable[column]
}

// State is the active sort column and direction. The zero value sorts by manual
// position.
type State struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

func Default() State {
	return State{Column: ColumnPosition, Direction: Asc}
}

func (s State) Normalize() State {
	if !Sortable(s.Column) {
		s.Column = ColumnPosition
	}
	if s.Direction != Desc {
		s.Direction = Asc
	}
	return s
}

// IsManual reports whether rows are in manual (position) order, the only order in which
// drag-reordering makes sense.
func (s State) IsManual() bool {
	return s.Normalize().Column == ColumnPosition
}

// Click advances the sort state for a header click: a new column starts ascending, the
// active column goes asc -> desc -> back to manual order.
func (s State) Click(column string) State {
	s = s.Normalize()
	if !Sortable(column) {
		return s
	}
	if s.Column != column {
		return State{Column: column, Direction: Asc}
	}
	if s.Direction == Asc {
		return State{Column: column, Direction: Desc}
	}
	return Default()
}

// Parse reads "column" or "column:asc|desc".
func Parse(spec string) (State, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Default(), nil
	}
	col, dir, _ := strings.Cut(spec, ":")
	st := State{Column: strings.TrimSpace(col), Direction: Asc}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		st.Direction = Desc
	default:
		return Default(), fmt.Errorf("invalid sort direction: %q", dir)
	}
	if !Sortable(st.Column) {
		return Default(), fmt.Errorf("column is not sortable: %q", st.Column)
	}
	return st, nil
}

func (s State) String() string {
	s = s.Normalize()
	return s.Column + ":" + string(s.Direction)
}

// Sorter compares tasks for one sort state. A Sorter holds a collator and must not be
// shared between goroutines.
type Sorter struct {
	state State
	cat   grouping.Catalog
	coll  *collate.Collator
}

func NewSorter(st State, cat grouping.Catalog) *Sorter {
	return &Sorter{
		state: st.Normalize(),
		cat:   cat,
		coll:  collate.New(language.Und, collate.IgnoreCase, collate.Loose),
	}
}

// Compare returns <0, 0 or >0. Ties on the sort column fall back to position then id,
// so the order is total and stable between renders.
func (s *Sorter) Compare(a, b model.Task) int {
	c := s.compareColumn(a, b)
	if s.state.Direction == Desc {
		c = -c
	}
	if c != 0 {
		return c
	}
	return taskstore.ComparePosition(a, b)
}

func (s *Sorter) compareColumn(a, b model.Task) int {
	switch s.state.Column {
	case ColumnTitle:
		return s.coll.CompareString(a.Title, b.Title)
	case ColumnStatus:
		return compareInt(statusutil.StatusOrdinal(a.Status.Value), statusutil.StatusOrdinal(b.Status.Value))
	case ColumnPriority:
		return compareInt(statusutil.PriorityOrdinal(a.Priority.Value), statusutil.PriorityOrdinal(b.Priority.Value))
	case ColumnDueDate:
		return compareDates(a.DueDate, b.DueDate)
	case ColumnStartDate:
		return compareDates(a.StartDate, b.StartDate)
	case ColumnMilestone:
		an, _ := s.cat.MilestoneName(a.Milestone())
		bn, _ := s.cat.MilestoneName(b.Milestone())
		return s.coll.CompareString(an, bn)
	default:
		return 0
	}
}

// Sort returns a sorted copy of tasks.
func (s *Sorter) Sort(tasks []model.Task) []model.Task {
	out := append([]model.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool { return s.Compare(out[i], out[j]) < 0 })
	return out
}

// Sort is a convenience for a one-off sort.
func Sort(tasks []model.Task, st State, cat grouping.Catalog) []model.Task {
	return NewSorter(st, cat).Sort(tasks)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareDates orders ascending; a missing date sorts as +infinity.
func compareDates(a, b *model.Date) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}
