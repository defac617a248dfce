package mutate

import (
	"errors"
	"strings"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/statusutil"
)

type Field string

const (
	FieldTitle     Field = "title"
	FieldStatus    Field = "status"
	FieldPriority  Field = "priority"
	FieldDueDate   Field = "dueDate"
	FieldStartDate Field = "startDate"
	FieldMilestone Field = "milestone"
)

var editable = []Field{FieldTitle, FieldStatus, FieldPriority, FieldDueDate, FieldStartDate, FieldMilestone}

func EditableFields() []Field {
	return append([]Field(nil), editable...)
}

func ParseField(s string) (Field, error) {
	s = strings.TrimSpace(s)
	for _, f := range editable {
		if strings.EqualFold(string(f), s) {
			return f, nil
		}
	}
	return "", ErrNotEditable
}

// Snapshot is the exact prior state of one field, enough to undo an optimistic write.
type Snapshot struct {
	Field Field
	Value string
	Label string
	Set   bool
}

func Take(t model.Task, f Field) Snapshot {
	s := Snapshot{Field: f}
	switch f {
	case FieldTitle:
		s.Value, s.Set = t.Title, true
	case FieldStatus:
		s.Value, s.Label, s.Set = t.Status.Value, t.Status.Label, true
	case FieldPriority:
		s.Value, s.Label, s.Set = t.Priority.Value, t.Priority.Label, true
	case FieldDueDate:
		if t.DueDate != nil {
			s.Value, s.Set = t.DueDate.String(), true
		}
	case FieldStartDate:
		if t.StartDate != nil {
			s.Value, s.Set = t.StartDate.String(), true
		}
	case FieldMilestone:
		if t.MilestoneID != nil {
			s.Value, s.Set = *t.MilestoneID, true
		}
	}
	return s
}

// Restore writes a snapshot back verbatim, label included.
func Restore(t *model.Task, s Snapshot) {
	switch s.Field {
	case FieldTitle:
		t.Title = s.Value
	case FieldStatus:
		t.Status = model.StatusRef{Value: s.Value, Label: s.Label}
	case FieldPriority:
		t.Priority = model.PriorityRef{Value: s.Value, Label: s.Label}
	case FieldDueDate:
		t.DueDate = restoreDate(s)
	case FieldStartDate:
		t.StartDate = restoreDate(s)
	case FieldMilestone:
		if s.Set {
			v := s.Value
			t.MilestoneID = &v
		} else {
			t.MilestoneID = nil
		}
	}
}

func restoreDate(s Snapshot) *model.Date {
	if !s.Set {
		return nil
	}
	d, err := model.ParseDate(s.Value)
	if err != nil {
		return nil
	}
	return &d
}

// SetFieldResult mirrors what a caller needs to broadcast the change.
type SetFieldResult struct {
	Previous Snapshot
	Changed  bool
	Value    string
	Label    string
}

// Apply validates value and writes it to t. An empty value clears nullable fields.
// The label is the canonical display label for the new value.
func Apply(t *model.Task, f Field, value string, cat grouping.Catalog) (SetFieldResult, error) {
	if t == nil {
		return SetFieldResult{}, NotFoundError{Kind: "task", ID: ""}
	}
	prev := Take(*t, f)
	value = strings.TrimSpace(value)
	switch f {
	case FieldTitle:
		if value == "" {
			return SetFieldResult{}, InvalidValueError{Field: f, Value: value, Err: errors.New("title is empty")}
		}
		t.Title = value
	case FieldStatus:
		sid, err := statusutil.NormalizeStatusID(value)
		if err != nil {
			return SetFieldResult{}, InvalidValueError{Field: f, Value: value, Err: ErrInvalidStatus}
		}
		t.Status = model.StatusRef{Value: sid, Label: statusutil.StatusLabel(sid)}
		value = sid
	case FieldPriority:
		pid, _ := statusutil.NormalizePriorityID(value)
		t.Priority = model.PriorityRef{Value: pid, Label: statusutil.PriorityLabel(pid)}
		value = pid
	case FieldDueDate, FieldStartDate:
		var d *model.Date
		if value != "" {
			parsed, err := model.ParseDate(value)
			if err != nil {
				return SetFieldResult{}, InvalidValueError{Field: f, Value: value, Err: err}
			}
			d = &parsed
			value = parsed.String()
		}
		if f == FieldDueDate {
			t.DueDate = d
		} else {
			t.StartDate = d
		}
	case FieldMilestone:
		if value == "" {
			t.MilestoneID = nil
		} else {
			t.MilestoneID = &value
		}
	default:
		return SetFieldResult{}, ErrNotEditable
	}
	now := Take(*t, f)
	return SetFieldResult{
		Previous: prev,
		Changed:  now != prev,
		Value:    value,
		Label:    Label(*t, f, cat),
	}, nil
}

// Value is the field's current wire value ("" for unset).
func Value(t model.Task, f Field) string {
	return Take(t, f).Value
}

// Label is the field's current display label.
func Label(t model.Task, f Field, cat grouping.Catalog) string {
	switch f {
	case FieldStatus:
		return t.Status.Label
	case FieldPriority:
		return t.Priority.Label
	case FieldMilestone:
		if name, ok := cat.MilestoneName(t.Milestone()); ok {
			return name
		}
		return t.Milestone()
	default:
		return Value(t, f)
	}
}

// SetLabel overwrites the display label with a canonical one from a collaborator.
func SetLabel(t *model.Task, f Field, label string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	switch f {
	case FieldStatus:
		t.Status.Label = label
	case FieldPriority:
		t.Priority.Label = label
	}
}
