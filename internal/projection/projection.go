package projection

import (
	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/search"
	"tasklens/internal/sorting"
	"tasklens/internal/statusutil"
	"tasklens/internal/taskstore"
)

type Kind string

const (
	KindGroup Kind = "group"
	KindTask  Kind = "task"
)

type GroupHeader struct {
	Key            string `json:"key"`
	Label          string `json:"label"`
	Color          string `json:"color"`
	TaskCount      int    `json:"taskCount"`
	CompletedCount int    `json:"completedCount"`
	Collapsed      bool   `json:"collapsed"`
}

type TaskRow struct {
	Task        model.Task `json:"task"`
	Depth       int        `json:"depth"`
	HasChildren bool       `json:"hasChildren"`
	Expanded    bool       `json:"expanded"`
	// Forced is set when the row is expanded only because a search is active.
	Forced   bool `json:"forced,omitempty"`
	Matched  bool `json:"matched,omitempty"`
	Loading  bool `json:"loading,omitempty"`
	Updating bool `json:"updating,omitempty"`
}

// Item is one entry of the display list: a group header or a task row.
type Item struct {
	Kind  Kind         `json:"kind"`
	Group *GroupHeader `json:"group,omitempty"`
	Row   *TaskRow     `json:"row,omitempty"`
}

// Key identifies the item across rebuilds (task id, or "group:<key>").
func (it Item) Key() string {
	if it.Kind == KindGroup && it.Group != nil {
		return "group:" + it.Group.Key
	}
	if it.Row != nil {
		return it.Row.Task.ID
	}
	return ""
}

type Placement string

const (
	Above Placement = "above"
	Below Placement = "below"
)

// AdjacentInsert asks the builder to show TaskID directly above or below TargetID,
// regardless of the active sort.
type AdjacentInsert struct {
	TaskID    string    `json:"taskId"`
	TargetID  string    `json:"targetId"`
	Placement Placement `json:"placement"`
}

type Input struct {
	Index           *taskstore.Index
	GroupMode       grouping.Mode
	Sort            sorting.State
	CollapsedGroups map[string]bool
	// Expanded holds the ids of expanded nodes; every other node is collapsed.
	Expanded map[string]bool
	Query    string
	Today    model.Date
	Catalog  grouping.Catalog
	Adjacent []AdjacentInsert
	Loading  map[string]bool
	Updating map[string]bool
}

type Result struct {
	Items    []Item `json:"items"`
	TaskRows int    `json:"taskRows"`
	// Matches is the search match set including ancestors; nil when no search is active.
	Matches map[string]bool `json:"-"`
}

// Build turns the record store view into the ordered display list. It reads its input
// only and can be re-run at any time.
func Build(in Input) Result {
	ix := in.Index
	if ix == nil {
		ix = taskstore.IndexOf(nil)
	}
	matches := search.MatchSet(ix, in.Query)
	b := builder{in: in, ix: ix, matches: matches, seen: map[string]bool{}}

	var roots []model.Task
	for _, id := range ix.Roots() {
		if matches != nil && !matches[id] {
			continue
		}
		t, _ := ix.Task(id)
		roots = append(roots, t)
	}
	roots = sorting.NewSorter(in.Sort, in.Catalog).Sort(roots)

	if in.GroupMode == "" || in.GroupMode == grouping.ModeNone {
		for _, t := range roots {
			b.walk(t, 0)
		}
	} else {
		b.grouped(roots)
	}

	b.applyAdjacent()

	res := Result{Items: b.out, Matches: matches}
	for _, it := range b.out {
		if it.Kind == KindTask {
			res.TaskRows++
		}
	}
	return res
}

type builder struct {
	in      Input
	ix      *taskstore.Index
	matches map[string]bool
	seen    map[string]bool
	out     []Item
}

func (b *builder) grouped(roots []model.Task) {
	buckets := map[string][]model.Task{}
	var firstSeen []string
	for _, t := range roots {
		k := grouping.Key(t, b.in.GroupMode, b.in.Today)
		if _, ok := buckets[k]; !ok {
			firstSeen = append(firstSeen, k)
		}
		buckets[k] = append(buckets[k], t)
	}
	for _, k := range grouping.Order(b.in.GroupMode, firstSeen) {
		members := buckets[k]
		if len(members) == 0 {
			continue
		}
		info := grouping.InfoFor(b.in.GroupMode, k, b.in.Catalog)
		h := &GroupHeader{
			Key:       k,
			Label:     info.Label,
			Color:     info.Color,
			TaskCount: len(members),
			Collapsed: b.in.CollapsedGroups[k],
		}
		for _, t := range members {
			if statusutil.IsEndState(t.Status.Value) {
				h.CompletedCount++
			}
		}
		b.out = append(b.out, Item{Kind: KindGroup, Group: h})
		if h.Collapsed {
			continue
		}
		for _, t := range members {
			b.walk(t, 0)
		}
	}
}

func (b *builder) walk(t model.Task, depth int) {
	if b.seen[t.ID] || depth > taskstore.MaxWalk {
		return
	}
	b.seen[t.ID] = true

	forced := b.matches != nil
	expanded := forced || b.in.Expanded[t.ID]
	row := &TaskRow{
		Task:        t,
		Depth:       depth,
		HasChildren: b.ix.HasChildren(t.ID),
		Expanded:    expanded,
		Forced:      forced && !b.in.Expanded[t.ID],
		Matched:     b.matches != nil && search.Matches(t, b.in.Query),
		Loading:     b.in.Loading[t.ID],
		Updating:    b.in.Updating[t.ID],
	}
	b.out = append(b.out, Item{Kind: KindTask, Row: row})
	if !expanded {
		return
	}
	for _, cid := range b.ix.ChildrenOf(t.ID) {
		if b.matches != nil && !b.matches[cid] {
			continue
		}
		ch, _ := b.ix.Task(cid)
		b.walk(ch, depth+1)
	}
}

// applyAdjacent moves freshly created rows next to the row they were created from.
// Inserts apply in order, so a later insert targeting the same row ends up closer to it.
func (b *builder) applyAdjacent() {
	for _, ins := range b.in.Adjacent {
		if ins.TaskID == "" || ins.TaskID == ins.TargetID {
			continue
		}
		from := b.rowIndex(ins.TaskID)
		to := b.rowIndex(ins.TargetID)
		if from < 0 || to < 0 || b.section(from) != b.section(to) {
			continue
		}
		blockLen := b.blockLen(from)
		if to > from && to < from+blockLen {
			// Target sits inside the moved subtree.
			continue
		}
		block := append([]Item(nil), b.out[from:from+blockLen]...)
		rest := append(append([]Item(nil), b.out[:from]...), b.out[from+blockLen:]...)

		to = indexOfRow(rest, ins.TargetID)
		targetDepth := rest[to].Row.Depth
		shift := targetDepth - block[0].Row.Depth
		for i := range block {
			r := *block[i].Row
			r.Depth += shift
			block[i] = Item{Kind: KindTask, Row: &r}
		}

		at := to
		if ins.Placement == Below {
			at = to + blockLenIn(rest, to)
		}
		merged := make([]Item, 0, len(b.out))
		merged = append(merged, rest[:at]...)
		merged = append(merged, block...)
		merged = append(merged, rest[at:]...)
		b.out = merged
	}
}

func (b *builder) rowIndex(id string) int {
	return indexOfRow(b.out, id)
}

func indexOfRow(items []Item, id string) int {
	for i, it := range items {
		if it.Kind == KindTask && it.Row.Task.ID == id {
			return i
		}
	}
	return -1
}

// section is the number of group headers at or before i.
func (b *builder) section(i int) int {
	n := 0
	for j := 0; j <= i && j < len(b.out); j++ {
		if b.out[j].Kind == KindGroup {
			n++
		}
	}
	return n
}

func (b *builder) blockLen(i int) int {
	return blockLenIn(b.out, i)
}

// blockLenIn is the length of the row at i plus its visible descendants.
func blockLenIn(items []Item, i int) int {
	depth := items[i].Row.Depth
	n := 1
	for j := i + 1; j < len(items); j++ {
		if items[j].Kind != KindTask || items[j].Row.Depth <= depth {
			break
		}
		n++
	}
	return n
}
