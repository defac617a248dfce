package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
)

const maxCandidates = 5

// AmbiguousError is returned when a query matches several tasks or users equally well.
type AmbiguousError struct {
	Query      string
	Candidates []string
}

func (e AmbiguousError) Error() string {
	return fmt.Sprintf("%q is ambiguous; candidates:\n  %s", e.Query, strings.Join(e.Candidates, "\n  "))
}

// resolveTask finds a task by id, then by exact title, then by fuzzy title match. The
// whole tree is loaded when the query is not one of the already loaded ids.
func (s *session) resolveTask(ctx context.Context, query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", fmt.Errorf("empty task reference")
	}
	if _, ok := s.eng.Task(q); ok {
		return q, nil
	}
	if err := s.loadAll(ctx); err != nil {
		return "", err
	}
	tasks := s.eng.Tasks()
	ids := make([]string, len(tasks))
	titles := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i], titles[i] = t.ID, t.Title
	}
	return pick("task", q, ids, titles)
}

// resolveUser finds a catalog member or a known assignee by id or name.
func resolveUser(cat grouping.Catalog, query string) (model.UserRef, error) {
	q := strings.TrimSpace(query)
	var users []model.UserRef
	seen := map[string]bool{}
	for _, u := range append(append([]model.UserRef(nil), cat.Members...), cat.Assignees...) {
		if !seen[u.ID] {
			seen[u.ID] = true
			users = append(users, u)
		}
	}
	ids := make([]string, len(users))
	names := make([]string, len(users))
	for i, u := range users {
		if u.ID == q {
			return u, nil
		}
		ids[i], names[i] = u.ID, u.FullName
	}
	id, err := pick("user", q, ids, names)
	if err != nil {
		return model.UserRef{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.UserRef{}, mutate.NotFoundError{Kind: "user", ID: q}
}

// pick chooses one of ids by its label: an exact id, a unique case-insensitive label,
// or a fuzzy match that scores strictly better than the runner-up.
func pick(kind, q string, ids, labels []string) (string, error) {
	for _, id := range ids {
		if id == q {
			return id, nil
		}
	}
	var exact []int
	for i, l := range labels {
		if strings.EqualFold(strings.TrimSpace(l), q) {
			exact = append(exact, i)
		}
	}
	switch len(exact) {
	case 1:
		return ids[exact[0]], nil
	case 0:
	default:
		return "", ambiguous(q, ids, labels, exact)
	}

	matches := fuzzy.Find(q, labels)
	if len(matches) == 0 {
		return "", mutate.NotFoundError{Kind: kind, ID: q}
	}
	if len(matches) == 1 || matches[0].Score > matches[1].Score {
		return ids[matches[0].Index], nil
	}
	var tied []int
	for _, m := range matches {
		if m.Score == matches[0].Score {
			tied = append(tied, m.Index)
		}
	}
	return "", ambiguous(q, ids, labels, tied)
}

func ambiguous(q string, ids, labels []string, idx []int) error {
	e := AmbiguousError{Query: q}
	for _, i := range idx {
		if len(e.Candidates) == maxCandidates {
			e.Candidates = append(e.Candidates, "…")
			break
		}
		e.Candidates = append(e.Candidates, ids[i]+"  "+labels[i])
	}
	return e
}
