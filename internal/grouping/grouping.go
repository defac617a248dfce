package grouping

import (
	"fmt"
	"strings"

	"tasklens/internal/model"
	"tasklens/internal/statusutil"
)

type Mode string

const (
	ModeNone      Mode = "none"
	ModeStatus    Mode = "status"
	ModePriority  Mode = "priority"
	ModeMilestone Mode = "milestone"
	ModeAssignee  Mode = "assignee"
	ModeDueDate   Mode = "dueDate"
)

const (
	AllKey         = "__all__"
	NoMilestoneKey = "__no_milestone__"
	UnassignedKey  = "__unassigned__"

	DueOverdue  = "overdue"
	DueToday    = "today"
	DueThisWeek = "this_week"
	DueNextWeek = "next_week"
	DueLater    = "later"
	DueNoDate   = "no_date"
)

var dueOrder = []string{DueOverdue, DueToday, DueThisWeek, DueNextWeek, DueLater, DueNoDate}

var dueInfo = map[string]Info{
	DueOverdue:  {Label: "Overdue", Color: "#ef4444"},
	DueToday:    {Label: "Today", Color: "#f97316"},
	DueThisWeek: {Label: "This Week", Color: "#eab308"},
	DueNextWeek: {Label: "Next Week", Color: "#22c55e"},
	DueLater:    {Label: "Later", Color: "#3b82f6"},
	DueNoDate:   {Label: "No Due Date", Color: "#6b7280"},
}

const (
	unknownColor   = "#6b7280"
	milestoneColor = "#6366f1"
	assigneeColor  = "#06b6d4"
)

func Modes() []Mode {
	return []Mode{ModeNone, ModeStatus, ModePriority, ModeMilestone, ModeAssignee, ModeDueDate}
}

func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModeNone, nil
	}
	for _, m := range Modes() {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("unknown group mode: %q", s)
}

// Next cycles through the modes in menu order.
func (m Mode) Next() Mode {
	modes := Modes()
	for i, cur := range modes {
		if cur == m {
			return modes[(i+1)%len(modes)]
		}
	}
	return ModeNone
}

type Info struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Catalog holds the known entities group labels are resolved against.
type Catalog struct {
	Milestones []model.Milestone `json:"milestones,omitempty"`
	Members    []model.UserRef   `json:"members,omitempty"`
	// Assignees seen on task records; used when a member list doesn't know the user.
	Assignees []model.UserRef `json:"-"`
}

// WithTaskAssignees returns a copy of c that also knows every assignee in tasks.
func (c Catalog) WithTaskAssignees(tasks []model.Task) Catalog {
	seen := map[string]bool{}
	out := c
	out.Assignees = nil
	for _, t := range tasks {
		for _, u := range t.Assignees {
			if seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			out.Assignees = append(out.Assignees, u)
		}
	}
	return out
}

func (c Catalog) MilestoneName(id string) (string, bool) {
	for _, m := range c.Milestones {
		if m.ID == id {
			return m.Name, true
		}
	}
	return "", false
}

// Key returns the bucket a task belongs to. It is a pure function of its inputs.
func Key(t model.Task, mode Mode, today model.Date) string {
	switch mode {
	case ModeStatus:
		if v := strings.TrimSpace(t.Status.Value); v != "" {
			return v
		}
		return statusutil.DefaultStatus
	case ModePriority:
		if v := strings.TrimSpace(t.Priority.Value); v != "" {
			return v
		}
		return statusutil.DefaultPriority
	case ModeMilestone:
		if ms := t.Milestone(); ms != "" {
			return ms
		}
		return NoMilestoneKey
	case ModeAssignee:
		if len(t.Assignees) > 0 && t.Assignees[0].ID != "" {
			return t.Assignees[0].ID
		}
		return UnassignedKey
	case ModeDueDate:
		return dueBucket(t.DueDate, today)
	default:
		return AllKey
	}
}

func dueBucket(due *model.Date, today model.Date) string {
	if due == nil {
		return DueNoDate
	}
	switch {
	case due.Before(today):
		return DueOverdue
	case due.Compare(today) == 0:
		return DueToday
	case due.Before(today.AddDays(7)):
		return DueThisWeek
	case due.Before(today.AddDays(14)):
		return DueNextWeek
	default:
		return DueLater
	}
}

// InfoFor resolves a bucket key to its label and color. Unresolvable keys get a
// stable "Unknown" label rather than an error.
func InfoFor(mode Mode, key string, cat Catalog) Info {
	switch mode {
	case ModeStatus:
		if d, ok := statusutil.StatusDef(key); ok {
			return Info{Label: d.Label, Color: d.Color}
		}
		return Info{Label: key, Color: unknownColor}
	case ModePriority:
		if d, ok := statusutil.PriorityDef(key); ok {
			return Info{Label: d.Label, Color: d.Color}
		}
		return Info{Label: key, Color: unknownColor}
	case ModeMilestone:
		if key == NoMilestoneKey {
			return Info{Label: "No Milestone", Color: unknownColor}
		}
		if name, ok := cat.MilestoneName(key); ok && name != "" {
			return Info{Label: name, Color: milestoneColor}
		}
		return Info{Label: "Unknown Milestone", Color: milestoneColor}
	case ModeAssignee:
		if key == UnassignedKey {
			return Info{Label: "Unassigned", Color: unknownColor}
		}
		for _, u := range cat.Members {
			if u.ID == key && u.FullName != "" {
				return Info{Label: u.FullName, Color: assigneeColor}
			}
		}
		for _, u := range cat.Assignees {
			if u.ID == key && u.FullName != "" {
				return Info{Label: u.FullName, Color: assigneeColor}
			}
		}
		return Info{Label: "Unknown", Color: unknownColor}
	case ModeDueDate:
		if info, ok := dueInfo[key]; ok {
			return info
		}
		return Info{Label: key, Color: unknownColor}
	default:
		return Info{Label: "All Tasks", Color: unknownColor}
	}
}

// Order arranges bucket keys for display. Status, priority and due-date buckets use
// their fixed order (unknown keys follow in first-seen order); milestone and assignee
// buckets keep first-seen order.
func Order(mode Mode, firstSeen []string) []string {
	var fixed []string
	switch mode {
	case ModeStatus:
		for _, d := range statusutil.Statuses() {
			fixed = append(fixed, d.ID)
		}
	case ModePriority:
		for _, d := range statusutil.Priorities() {
			fixed = append(fixed, d.ID)
		}
	case ModeDueDate:
		fixed = dueOrder
	default:
		return append([]string(nil), firstSeen...)
	}
	present := map[string]bool{}
	for _, k := range firstSeen {
		present[k] = true
	}
	out := make([]string, 0, len(firstSeen))
	known := map[string]bool{}
	for _, k := range fixed {
		known[k] = true
		if present[k] {
			out = append(out, k)
		}
	}
	for _, k := range firstSeen {
		if !known[k] {
			out = append(out, k)
		}
	}
	return out
}

// Defaults are the field values a task created inside a bucket starts with.
type Defaults struct {
	Status      string
	Priority    string
	MilestoneID string
}

func QuickAddDefaults(mode Mode, key string, cat Catalog) Defaults {
	d := Defaults{Status: statusutil.DefaultStatus, Priority: statusutil.PriorityMedium}
	if len(cat.Milestones) > 0 {
		d.MilestoneID = cat.Milestones[0].ID
	}
	if key == "" || key == AllKey {
		return d
	}
	switch mode {
	case ModeStatus:
		d.Status = key
	case ModePriority:
		d.Priority = key
	case ModeMilestone:
		if key != NoMilestoneKey {
			d.MilestoneID = key
		}
	}
	return d
}
