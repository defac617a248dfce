package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"tasklens/internal/statusutil"
)

// taskWire is the permissive wire shape. Collaborators disagree on the shape of
// status/priority (string or object), assignees (flat or nested under "user"), tags
// (name or object) and ids (string or number); everything is folded onto Task here.
type taskWire struct {
	ID          json.RawMessage   `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ProjectName string            `json:"projectName"`
	Status      json.RawMessage   `json:"status"`
	Priority    json.RawMessage   `json:"priority"`
	MilestoneID json.RawMessage   `json:"milestoneId"`
	Milestone   json.RawMessage   `json:"milestone"`
	Assignees   []json.RawMessage `json:"assignees"`
	Tags        []json.RawMessage `json:"tags"`
	DueDate     json.RawMessage   `json:"dueDate"`
	StartDate   json.RawMessage   `json:"startDate"`
	Position    *float64          `json:"position"`
	ParentID    json.RawMessage   `json:"parentId"`

	SubtaskCount          int `json:"subtaskCount"`
	CompletedSubtaskCount int `json:"completedSubtaskCount"`
}

func (t *Task) UnmarshalJSON(b []byte) error {
	var w taskWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Task{
		ID:                    rawString(w.ID),
		Title:                 w.Title,
		Description:           w.Description,
		ProjectName:           w.ProjectName,
		SubtaskCount:          w.SubtaskCount,
		CompletedSubtaskCount: w.CompletedSubtaskCount,
	}
	out.Status.Value, out.Status.Label = rawRef(w.Status)
	out.Priority.Value, out.Priority.Label = rawRef(w.Priority)

	if ms := rawString(w.MilestoneID); ms != "" {
		out.MilestoneID = &ms
	} else if id, _ := rawRef(w.Milestone); id != "" {
		out.MilestoneID = &id
	}
	if pid := rawString(w.ParentID); pid != "" {
		out.ParentID = &pid
	}
	if w.Position != nil {
		out.Position = *w.Position
	}
	out.DueDate = rawDate(w.DueDate)
	out.StartDate = rawDate(w.StartDate)

	for _, raw := range w.Assignees {
		if u, ok := rawUser(raw); ok {
			out.Assignees = append(out.Assignees, u)
		}
	}
	for _, raw := range w.Tags {
		if tg, ok := rawTag(raw); ok {
			out.Tags = append(out.Tags, tg)
		}
	}

	Normalize(&out)
	*t = out
	return nil
}

// Normalize fills defaults for missing or malformed fields. It is idempotent and is
// applied to every record entering the store.
func Normalize(t *Task) {
	if t == nil {
		return
	}
	t.ID = strings.TrimSpace(t.ID)

	if sid, err := statusutil.NormalizeStatusID(t.Status.Value); err == nil {
		if sid != t.Status.Value {
			t.Status.Label = ""
		}
		t.Status.Value = sid
	} else {
		t.Status = StatusRef{Value: statusutil.DefaultStatus}
	}
	if strings.TrimSpace(t.Status.Label) == "" {
		t.Status.Label = statusutil.StatusLabel(t.Status.Value)
	}

	pid, _ := statusutil.NormalizePriorityID(t.Priority.Value)
	if pid != t.Priority.Value {
		t.Priority.Label = ""
	}
	t.Priority.Value = pid
	if strings.TrimSpace(t.Priority.Label) == "" {
		t.Priority.Label = statusutil.PriorityLabel(t.Priority.Value)
	}

	if t.MilestoneID != nil && strings.TrimSpace(*t.MilestoneID) == "" {
		t.MilestoneID = nil
	}
	if t.ParentID != nil {
		p := strings.TrimSpace(*t.ParentID)
		// A record can't be its own parent; treat it as a root.
		if p == "" || p == t.ID {
			t.ParentID = nil
		} else {
			t.ParentID = &p
		}
	}

	if len(t.Assignees) > 0 {
		seen := map[string]bool{}
		users := t.Assignees[:0:0]
		for _, u := range t.Assignees {
			u.ID = strings.TrimSpace(u.ID)
			if u.ID == "" || seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			users = append(users, u)
		}
		t.Assignees = users
	}
	if len(t.Tags) > 0 {
		seen := map[string]bool{}
		tags := t.Tags[:0:0]
		for _, tg := range t.Tags {
			tg.Name = strings.TrimSpace(tg.Name)
			k := strings.ToLower(tg.Name)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			tags = append(tags, tg)
		}
		t.Tags = tags
	}

	if t.SubtaskCount < 0 {
		t.SubtaskCount = 0
	}
	if t.CompletedSubtaskCount < 0 {
		t.CompletedSubtaskCount = 0
	}
	if t.CompletedSubtaskCount > t.SubtaskCount {
		t.CompletedSubtaskCount = t.SubtaskCount
	}
}

func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

// rawRef decodes "value" or {"value"|"id": ..., "label"|"name": ...}.
func rawRef(raw json.RawMessage) (value, label string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return rawString(raw), ""
	}
	var obj struct {
		Value json.RawMessage `json:"value"`
		ID    json.RawMessage `json:"id"`
		Label string          `json:"label"`
		Name  string          `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", ""
	}
	value = rawString(obj.Value)
	if value == "" {
		value = rawString(obj.ID)
	}
	label = strings.TrimSpace(obj.Label)
	if label == "" {
		label = strings.TrimSpace(obj.Name)
	}
	return value, label
}

func rawUser(raw json.RawMessage) (UserRef, bool) {
	var obj struct {
		ID       json.RawMessage `json:"id"`
		FullName string          `json:"fullName"`
		Name     string          `json:"name"`
		User     *struct {
			ID       json.RawMessage `json:"id"`
			FullName string          `json:"fullName"`
			Name     string          `json:"name"`
		} `json:"user"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return UserRef{}, false
	}
	u := UserRef{ID: rawString(obj.ID), FullName: firstNonEmpty(obj.FullName, obj.Name)}
	if obj.User != nil {
		if id := rawString(obj.User.ID); id != "" {
			u.ID = id
		}
		if n := firstNonEmpty(obj.User.FullName, obj.User.Name); n != "" {
			u.FullName = n
		}
	}
	return u, u.ID != ""
}

func rawTag(raw json.RawMessage) (Tag, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		name := rawString(raw)
		return Tag{Name: name}, name != ""
	}
	var obj struct {
		ID    json.RawMessage `json:"id"`
		Name  string          `json:"name"`
		Color string          `json:"color"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Tag{}, false
	}
	tg := Tag{ID: rawString(obj.ID), Name: strings.TrimSpace(obj.Name), Color: obj.Color}
	return tg, tg.Name != ""
}

// rawDate drops empty and unparseable dates.
func rawDate(raw json.RawMessage) *Date {
	s := rawString(raw)
	if s == "" {
		return nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
