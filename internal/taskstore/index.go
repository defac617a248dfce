package taskstore

import (
	"sort"

	"tasklens/internal/model"
)

const (
	// MaxDepth is the deepest nesting level a task may be moved or created at
	// (0 = root).
	MaxDepth = 2

	// MaxWalk bounds every upward or downward walk so malformed parent links can't
	// loop forever.
	MaxWalk = 64
)

// Index is a read-only snapshot of the parent/child structure of a Store.
type Index struct {
	tasks    map[string]model.Task
	order    []string
	children map[string][]string
	roots    []string
}

// BuildIndex derives the tree from the store. Records whose parent is missing are
// treated as roots so a partially loaded tree never hides them.
func BuildIndex(s *Store) *Index {
	return IndexOf(s.All())
}

func IndexOf(tasks []model.Task) *Index {
	ix := &Index{
		tasks:    make(map[string]model.Task, len(tasks)),
		order:    make([]string, 0, len(tasks)),
		children: map[string][]string{},
	}
	for _, t := range tasks {
		if _, dup := ix.tasks[t.ID]; !dup {
			ix.order = append(ix.order, t.ID)
		}
		ix.tasks[t.ID] = t
	}
	for _, id := range ix.order {
		t := ix.tasks[id]
		pid := t.Parent()
		if pid == "" {
			ix.roots = append(ix.roots, id)
			continue
		}
		if _, ok := ix.tasks[pid]; !ok {
			ix.roots = append(ix.roots, id)
			continue
		}
		ix.children[pid] = append(ix.children[pid], id)
	}
	ix.sortByPosition(ix.roots)
	for pid := range ix.children {
		ix.sortByPosition(ix.children[pid])
	}
	return ix
}

func (ix *Index) sortByPosition(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return ComparePosition(ix.tasks[ids[i]], ix.tasks[ids[j]]) < 0
	})
}

// ComparePosition orders by manual position with the id as a deterministic tie-break.
func ComparePosition(a, b model.Task) int {
	if a.Position < b.Position {
		return -1
	}
	if a.Position > b.Position {
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

func (ix *Index) Task(id string) (model.Task, bool) {
	t, ok := ix.tasks[id]
	return t, ok
}

// Tasks returns every record in store insertion order.
func (ix *Index) Tasks() []model.Task {
	out := make([]model.Task, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.tasks[id])
	}
	return out
}

func (ix *Index) Len() int {
	return len(ix.order)
}

// Roots returns root ids in position order.
func (ix *Index) Roots() []string {
	return append([]string(nil), ix.roots...)
}

func (ix *Index) IsRoot(id string) bool {
	t, ok := ix.tasks[id]
	if !ok {
		return false
	}
	pid := t.Parent()
	if pid == "" {
		return true
	}
	_, present := ix.tasks[pid]
	return !present
}

// ChildrenOf returns the locally present children of id in position order.
func (ix *Index) ChildrenOf(id string) []string {
	return append([]string(nil), ix.children[id]...)
}

func (ix *Index) HasLoadedChildren(id string) bool {
	return len(ix.children[id]) > 0
}

// HasChildren reports whether id has children locally or on the server.
func (ix *Index) HasChildren(id string) bool {
	if len(ix.children[id]) > 0 {
		return true
	}
	t, ok := ix.tasks[id]
	return ok && t.SubtaskCount > 0
}

// Ancestors returns the present ancestors of id, nearest first.
func (ix *Index) Ancestors(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	cur, ok := ix.tasks[id]
	for steps := 0; ok && steps < MaxWalk; steps++ {
		pid := cur.Parent()
		if pid == "" || seen[pid] {
			break
		}
		p, present := ix.tasks[pid]
		if !present {
			break
		}
		seen[pid] = true
		out = append(out, pid)
		cur = p
	}
	return out
}

func (ix *Index) Depth(id string) int {
	return len(ix.Ancestors(id))
}

// IsDescendant reports whether id sits anywhere below ancestorID.
func (ix *Index) IsDescendant(id, ancestorID string) bool {
	for _, a := range ix.Ancestors(id) {
		if a == ancestorID {
			return true
		}
	}
	return false
}

// Descendants returns every present descendant of id, breadth first.
func (ix *Index) Descendants(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ch := range ix.children[cur] {
			if seen[ch] {
				continue
			}
			seen[ch] = true
			out = append(out, ch)
			queue = append(queue, ch)
		}
	}
	return out
}

// SubtreeHeight is the number of levels below id (0 for a leaf).
func (ix *Index) SubtreeHeight(id string) int {
	var walk func(id string, depth int, seen map[string]bool) int
	walk = func(id string, depth int, seen map[string]bool) int {
		if depth >= MaxWalk {
			return depth
		}
		best := depth
		for _, ch := range ix.children[id] {
			if seen[ch] {
				continue
			}
			seen[ch] = true
			if d := walk(ch, depth+1, seen); d > best {
				best = d
			}
		}
		return best
	}
	return walk(id, 0, map[string]bool{id: true})
}

// Siblings returns the ids sharing id's parent (id included), in position order.
func (ix *Index) Siblings(id string) []string {
	t, ok := ix.tasks[id]
	if !ok {
		return nil
	}
	if ix.IsRoot(id) {
		return ix.Roots()
	}
	return ix.ChildrenOf(t.Parent())
}
