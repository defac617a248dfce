package statusutil

import (
	"fmt"
	"strings"
)

// Def describes one entry in a fixed status or priority table.
type Def struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Color      string `json:"color"`
	IsEndState bool   `json:"isEndState,omitempty"`
}

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusCompleted  = "completed"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
	PriorityNone   = "none"

	DefaultStatus   = StatusTodo
	DefaultPriority = PriorityNone
)

// Table order is the ordinal order used for sorting and group ordering.
var statuses = []Def{
	{ID: StatusTodo, Label: "To Do", Color: "#6b7280"},
	{ID: StatusInProgress, Label: "In Progress", Color: "#3b82f6"},
	{ID: StatusInReview, Label: "In Review", Color: "#eab308"},
	{ID: StatusCompleted, Label: "Completed", Color: "#22c55e", IsEndState: true},
}

var priorities = []Def{
	{ID: PriorityHigh, Label: "High", Color: "#ef4444"},
	{ID: PriorityMedium, Label: "Medium", Color: "#eab308"},
	{ID: PriorityLow, Label: "Low", Color: "#3b82f6"},
	{ID: PriorityNone, Label: "None", Color: "#6b7280"},
}

func Statuses() []Def {
	return append([]Def(nil), statuses...)
}

func Priorities() []Def {
	return append([]Def(nil), priorities...)
}

// NormalizeStatusID maps user/wire spellings onto the canonical status ids.
// Unknown non-empty ids are passed through trimmed.
func NormalizeStatusID(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "_")) {
	case "TODO", "TO_DO", "OPEN":
		return StatusTodo, nil
	case "IN_PROGRESS", "INPROGRESS", "DOING":
		return StatusInProgress, nil
	case "IN_REVIEW", "REVIEW":
		return StatusInReview, nil
	case "COMPLETED", "DONE", "COMPLETE":
		return StatusCompleted, nil
	}
	if s == "" {
		return "", fmt.Errorf("invalid status: empty")
	}
	return s, nil
}

func NormalizePriorityID(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "HIGH", "P1":
		return PriorityHigh, nil
	case "MEDIUM", "MED", "P2":
		return PriorityMedium, nil
	case "LOW", "P3":
		return PriorityLow, nil
	case "NONE", "":
		return PriorityNone, nil
	}
	return s, nil
}

func lookup(table []Def, id string) (Def, int, bool) {
	for i, d := range table {
		if d.ID == id {
			return d, i, true
		}
	}
	return Def{}, len(table), false
}

func StatusDef(id string) (Def, bool) {
	d, _, ok := lookup(statuses, strings.TrimSpace(id))
	return d, ok
}

func PriorityDef(id string) (Def, bool) {
	d, _, ok := lookup(priorities, strings.TrimSpace(id))
	return d, ok
}

// StatusOrdinal ranks a status for sorting. Missing and unknown ids rank as todo.
func StatusOrdinal(id string) int {
	if _, n, ok := lookup(statuses, strings.TrimSpace(id)); ok {
		return n
	}
	_, n, _ := lookup(statuses, DefaultStatus)
	return n
}

// PriorityOrdinal ranks a priority for sorting: high < medium < low < none. Missing and
// unknown ids rank as none.
func PriorityOrdinal(id string) int {
	if _, n, ok := lookup(priorities, strings.TrimSpace(id)); ok {
		return n
	}
	_, n, _ := lookup(priorities, DefaultPriority)
	return n
}

func StatusLabel(id string) string {
	if d, ok := StatusDef(id); ok {
		return d.Label
	}
	return strings.TrimSpace(id)
}

func PriorityLabel(id string) string {
	if d, ok := PriorityDef(id); ok {
		return d.Label
	}
	return strings.TrimSpace(id)
}

func StatusColor(id string) string {
	if d, ok := StatusDef(id); ok {
		return d.Color
	}
	return "#6b7280"
}

func PriorityColor(id string) string {
	if d, ok := PriorityDef(id); ok {
		return d.Color
	}
	return "#6b7280"
}

func IsEndState(statusID string) bool {
	d, ok := StatusDef(statusID)
	return ok && d.IsEndState
}

// NextStatus cycles through the status table; unknown ids restart at todo.
func NextStatus(id string) string {
	_, n, ok := lookup(statuses, strings.TrimSpace(id))
	if !ok {
		return statuses[0].ID
	}
	return statuses[(n+1)%len(statuses)].ID
}
