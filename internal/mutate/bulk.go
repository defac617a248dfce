package mutate

import (
	"errors"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
	"tasklens/internal/statusutil"
)

var ErrEmptyBulkUpdate = errors.New("bulk update sets no fields")

// BulkUpdate is the payload applied to every selected task. Nil fields are left
// untouched; an empty MilestoneID clears the milestone.
type BulkUpdate struct {
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	MilestoneID *string `json:"milestone,omitempty"`
}

func (u BulkUpdate) Empty() bool {
	return u.Status == nil && u.Priority == nil && u.MilestoneID == nil
}

func (u BulkUpdate) Validate() error {
	if u.Empty() {
		return ErrEmptyBulkUpdate
	}
	if u.Status != nil {
		if _, err := statusutil.NormalizeStatusID(*u.Status); err != nil {
			return InvalidValueError{Field: FieldStatus, Value: *u.Status, Err: ErrInvalidStatus}
		}
	}
	return nil
}

// Fields lists the fields u sets, in a fixed order.
func (u BulkUpdate) Fields() []Field {
	var out []Field
	if u.Status != nil {
		out = append(out, FieldStatus)
	}
	if u.Priority != nil {
		out = append(out, FieldPriority)
	}
	if u.MilestoneID != nil {
		out = append(out, FieldMilestone)
	}
	return out
}

func (u BulkUpdate) value(f Field) string {
	switch f {
	case FieldStatus:
		return *u.Status
	case FieldPriority:
		return *u.Priority
	case FieldMilestone:
		return *u.MilestoneID
	}
	return ""
}

// ApplyBulk writes every field of u to t and returns one result per field.
func ApplyBulk(t *model.Task, u BulkUpdate, cat grouping.Catalog) ([]SetFieldResult, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	var out []SetFieldResult
	for _, f := range u.Fields() {
		res, err := Apply(t, f, u.value(f), cat)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
