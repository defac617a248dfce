package statusutil

import "testing"

func TestNormalizeStatusID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"todo", "todo", false},
		{"TODO", "todo", false},
		{"in-progress", "in_progress", false},
		{"Doing", "in_progress", false},
		{"review", "in_review", false},
		{"DONE", "completed", false},
		{"  backlog ", "backlog", false},
		{"", "", true},
		{"   ", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeStatusID(tc.in)
		if tc.wantErr && err == nil {
			t.Fatalf("NormalizeStatusID(%q): expected error", tc.in)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("NormalizeStatusID(%q): unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeStatusID(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestOrdinals(t *testing.T) {
	if StatusOrdinal("") != StatusOrdinal("todo") {
		t.Fatalf("expected missing status to rank as todo")
	}
	if !(StatusOrdinal("todo") < StatusOrdinal("in_progress") && StatusOrdinal("in_review") < StatusOrdinal("completed")) {
		t.Fatalf("unexpected status ordinal order")
	}
	if StatusOrdinal("mystery") != StatusOrdinal("todo") {
		t.Fatalf("expected unknown status to rank as todo")
	}
	if PriorityOrdinal("") != 3 {
		t.Fatalf("expected missing priority to rank as none (3), got %d", PriorityOrdinal(""))
	}
	if !(PriorityOrdinal("high") < PriorityOrdinal("medium") && PriorityOrdinal("low") < PriorityOrdinal("none")) {
		t.Fatalf("unexpected priority ordinal order")
	}
}

func TestLabelsAndEndState(t *testing.T) {
	if got := StatusLabel("in_review"); got != "In Review" {
		t.Fatalf("expected In Review, got %q", got)
	}
	if got := PriorityLabel("high"); got != "High" {
		t.Fatalf("expected High, got %q", got)
	}
	if got := StatusLabel("custom"); got != "custom" {
		t.Fatalf("expected unknown id as label, got %q", got)
	}
	if !IsEndState("completed") || IsEndState("todo") {
		t.Fatalf("unexpected end state")
	}
	if got := NextStatus("completed"); got != "todo" {
		t.Fatalf("expected wrap to todo, got %q", got)
	}
}
