package taskstore

import (
	"tasklens/internal/model"
	"tasklens/internal/statusutil"
)

// Store is the authoritative in-memory map of task records keyed by id. It is not
// safe for concurrent use; the engine touches it from its event loop only.
type Store struct {
	byID    map[string]*model.Task
	order   []string
	version uint64
}

func New(tasks ...model.Task) *Store {
	s := &Store{byID: map[string]*model.Task{}}
	s.Merge(tasks)
	return s
}

// Upsert inserts or replaces a record by id. It reports whether the id was new.
func (s *Store) Upsert(t model.Task) bool {
	model.Normalize(&t)
	if t.ID == "" {
		return false
	}
	s.version++
	if cur, ok := s.byID[t.ID]; ok {
		*cur = t.Clone()
		return false
	}
	c := t.Clone()
	s.byID[t.ID] = &c
	s.order = append(s.order, t.ID)
	return true
}

// Merge upserts every record and returns how many ids were new.
func (s *Store) Merge(tasks []model.Task) int {
	n := 0
	for _, t := range tasks {
		if s.Upsert(t) {
			n++
		}
	}
	return n
}

func (s *Store) Get(id string) (model.Task, bool) {
	t, ok := s.byID[id]
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Update applies fn to the stored record in place. The id and parent link can change
// through fn; the record is re-normalized afterwards.
func (s *Store) Update(id string, fn func(t *model.Task)) bool {
	t, ok := s.byID[id]
	if !ok {
		return false
	}
	fn(t)
	t.ID = id
	model.Normalize(t)
	s.version++
	return true
}

// Remove deletes records by id and returns the ids that were present.
func (s *Store) Remove(ids ...string) []string {
	drop := map[string]bool{}
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			drop[id] = true
			delete(s.byID, id)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	s.version++
	removed := make([]string, 0, len(drop))
	kept := s.order[:0]
	for _, id := range s.order {
		if drop[id] {
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

// All returns copies of every record in insertion order.
func (s *Store) All() []model.Task {
	out := make([]model.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

func (s *Store) Len() int {
	return len(s.order)
}

// Version increases on every mutation; views use it to detect staleness.
func (s *Store) Version() uint64 {
	return s.version
}

// RecountChildren recomputes the child counters of parentID from the children present
// locally. It is a no-op when the parent is unknown.
func (s *Store) RecountChildren(parentID string) {
	p, ok := s.byID[parentID]
	if !ok {
		return
	}
	total, done := 0, 0
	for _, id := range s.order {
		t := s.byID[id]
		if t.Parent() != parentID {
			continue
		}
		total++
		if statusutil.IsEndState(t.Status.Value) {
			done++
		}
	}
	p.SubtaskCount = total
	p.CompletedSubtaskCount = done
	s.version++
}
