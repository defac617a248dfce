package mutate

import (
	"errors"
	"testing"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
)

func strPtr(s string) *string { return &s }

func TestApply_StatusUsesCanonicalLabel(t *testing.T) {
	tk := model.Task{ID: "t1", Status: model.StatusRef{Value: "todo", Label: "Backlog"}}
	res, err := Apply(&tk, FieldStatus, "done", grouping.Catalog{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if tk.Status.Value != "completed" || tk.Status.Label != "Completed" {
		t.Fatalf("unexpected status: %+v", tk.Status)
	}
	if !res.Changed || res.Value != "completed" || res.Label != "Completed" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Previous.Value != "todo" || res.Previous.Label != "Backlog" {
		t.Fatalf("unexpected snapshot: %+v", res.Previous)
	}
}

func TestRestore_RoundTripsExactly(t *testing.T) {
	due, _ := model.ParseDate("2024-01-02")
	orig := model.Task{
		ID:          "t1",
		Title:       "Original",
		Status:      model.StatusRef{Value: "in_review", Label: "Needs review"},
		Priority:    model.PriorityRef{Value: "low", Label: "Low"},
		DueDate:     &due,
		MilestoneID: nil,
	}
	values := map[Field]string{
		FieldTitle:     "Changed",
		FieldStatus:    "completed",
		FieldPriority:  "high",
		FieldDueDate:   "",
		FieldStartDate: "2024-02-02",
		FieldMilestone: "m1",
	}
	for _, f := range EditableFields() {
		tk := orig.Clone()
		res, err := Apply(&tk, f, values[f], grouping.Catalog{})
		if err != nil {
			t.Fatalf("%s: apply: %v", f, err)
		}
		Restore(&tk, res.Previous)
		if Take(tk, f) != Take(orig, f) {
			t.Fatalf("%s: restore mismatch: %+v vs %+v", f, Take(tk, f), Take(orig, f))
		}
	}
}

func TestApply_Validation(t *testing.T) {
	tk := model.Task{ID: "t1", Title: "x"}
	if _, err := Apply(&tk, FieldTitle, "   ", grouping.Catalog{}); err == nil {
		t.Fatalf("expected empty title error")
	}
	var inv InvalidValueError
	if _, err := Apply(&tk, FieldDueDate, "tomorrow-ish", grouping.Catalog{}); !errors.As(err, &inv) {
		t.Fatalf("expected InvalidValueError, got %v", err)
	}
	if _, err := Apply(&tk, Field("assignees"), "u1", grouping.Catalog{}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	if tk.Title != "x" || tk.DueDate != nil {
		t.Fatalf("expected task untouched after failed applies: %+v", tk)
	}
}

func TestLabel_Milestone(t *testing.T) {
	cat := grouping.Catalog{Milestones: []model.Milestone{{ID: "m1", Name: "Beta"}}}
	tk := model.Task{}
	res, err := Apply(&tk, FieldMilestone, "m1", cat)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Label != "Beta" {
		t.Fatalf("expected milestone name label, got %q", res.Label)
	}
}

func TestApplyBulk(t *testing.T) {
	tk := model.Task{ID: "t1", MilestoneID: strPtr("m1")}
	res, err := ApplyBulk(&tk, BulkUpdate{Status: strPtr("in_progress"), MilestoneID: strPtr("")}, grouping.Catalog{})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(res) != 2 || tk.Status.Value != "in_progress" || tk.MilestoneID != nil {
		t.Fatalf("unexpected bulk result: %+v %+v", res, tk)
	}
	if _, err := ApplyBulk(&tk, BulkUpdate{}, grouping.Catalog{}); !errors.Is(err, ErrEmptyBulkUpdate) {
		t.Fatalf("expected ErrEmptyBulkUpdate, got %v", err)
	}
}

func TestNotFoundError(t *testing.T) {
	err := error(NotFoundError{Kind: "task", ID: "t404"})
	if err.Error() != "task not found: t404" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
