package model

// StatusRef is the canonical status shape: an id plus its display label.
type StatusRef struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type PriorityRef struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type UserRef struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

type Tag struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type Milestone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is one record in the task table. Children are linked by ParentID only; the
// tree shape is derived (see taskstore.Index).
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ProjectName string `json:"projectName,omitempty"`

	Status      StatusRef   `json:"status"`
	Priority    PriorityRef `json:"priority"`
	MilestoneID *string     `json:"milestoneId,omitempty"`
	Assignees   []UserRef   `json:"assignees,omitempty"`
	Tags        []Tag       `json:"tags,omitempty"`

	DueDate   *Date `json:"dueDate,omitempty"`
	StartDate *Date `json:"startDate,omitempty"`

	Position float64 `json:"position"`
	ParentID *string `json:"parentId,omitempty"`

	// Server-reported child counts. Children may not be present locally.
	SubtaskCount          int `json:"subtaskCount"`
	CompletedSubtaskCount int `json:"completedSubtaskCount"`
}

func (t Task) Parent() string {
	if t.ParentID == nil {
		return ""
	}
	return *t.ParentID
}

func (t Task) Milestone() string {
	if t.MilestoneID == nil {
		return ""
	}
	return *t.MilestoneID
}

// Clone returns a deep copy so callers can hand out records without sharing slices.
func (t Task) Clone() Task {
	out := t
	if t.MilestoneID != nil {
		v := *t.MilestoneID
		out.MilestoneID = &v
	}
	if t.ParentID != nil {
		v := *t.ParentID
		out.ParentID = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		out.DueDate = &v
	}
	if t.StartDate != nil {
		v := *t.StartDate
		out.StartDate = &v
	}
	if t.Assignees != nil {
		out.Assignees = append([]UserRef(nil), t.Assignees...)
	}
	if t.Tags != nil {
		out.Tags = append([]Tag(nil), t.Tags...)
	}
	return out
}

func StringPtr(s string) *string {
	return &s
}
