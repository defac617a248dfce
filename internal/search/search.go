package search

import (
	"strings"

	"tasklens/internal/model"
	"tasklens/internal/taskstore"
)

// Matches reports whether the task's title, description, project name, an assignee
// name or a tag name contains query (case-insensitive). A blank query matches all.
func Matches(t model.Task, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if contains(t.Title, q) || contains(t.Description, q) || contains(t.ProjectName, q) {
		return true
	}
	for _, u := range t.Assignees {
		if contains(u.FullName, q) {
			return true
		}
	}
	for _, tg := range t.Tags {
		if contains(tg.Name, q) {
			return true
		}
	}
	return false
}

func contains(s, lowerQuery string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerQuery)
}

// MatchSet returns the ids of matching tasks plus every ancestor of a match, so the
// tree path to each match stays visible. It returns nil for a blank query, meaning
// "no filtering".
func MatchSet(ix *taskstore.Index, query string) map[string]bool {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	out := map[string]bool{}
	for _, t := range ix.Tasks() {
		if !Matches(t, query) {
			continue
		}
		out[t.ID] = true
		for _, a := range ix.Ancestors(t.ID) {
			if out[a] {
				// Everything above is already in the set.
				break
			}
			out[a] = true
		}
	}
	return out
}

// Active reports whether query filters anything.
func Active(query string) bool {
	return strings.TrimSpace(query) != ""
}
