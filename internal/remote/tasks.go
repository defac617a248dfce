package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"tasklens/internal/engine"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
)

var (
	_ engine.Backend         = (*Client)(nil)
	_ engine.PreferenceStore = (*Client)(nil)
)

// fieldRoutes maps an editable field to its endpoint suffix and request key.
var fieldRoutes = map[mutate.Field]struct{ suffix, key string }{
	mutate.FieldTitle:     {"title", "title"},
	mutate.FieldStatus:    {"status", "status"},
	mutate.FieldPriority:  {"priority", "priority"},
	mutate.FieldDueDate:   {"due-date", "dueDate"},
	mutate.FieldStartDate: {"start-date", "startDate"},
	mutate.FieldMilestone: {"milestone", "milestone"},
}

func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var out struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// FetchChildren coalesces concurrent requests for the same parent into one call.
func (c *Client) FetchChildren(ctx context.Context, taskID string) ([]model.Task, error) {
	v, err, shared := c.flights.Do("children:"+taskID, func() (any, error) {
		var out struct {
			Children []model.Task `json:"children"`
		}
		if err := c.do(ctx, http.MethodGet, taskPath(taskID, "children"), nil, &out); err != nil {
			return nil, err
		}
		return out.Children, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.WithField("task_id", taskID).Debug("joined in-flight children request")
	}
	kids := v.([]model.Task)
	out := make([]model.Task, len(kids))
	for i, k := range kids {
		out[i] = k.Clone()
	}
	return out, nil
}

func (c *Client) MutateField(ctx context.Context, taskID string, field mutate.Field, value string) (engine.MutateResult, error) {
	route, ok := fieldRoutes[field]
	if !ok {
		return engine.MutateResult{}, mutate.ErrNotEditable
	}
	body := map[string]any{route.key: value}
	if value == "" && (field == mutate.FieldDueDate || field == mutate.FieldStartDate) {
		body[route.key] = nil
	}
	var out struct {
		StatusLabel   string `json:"statusLabel"`
		PriorityLabel string `json:"priorityLabel"`
		MilestoneName string `json:"milestoneName"`
	}
	if err := c.do(ctx, http.MethodPost, taskPath(taskID, route.suffix), body, &out); err != nil {
		return engine.MutateResult{}, err
	}
	switch field {
	case mutate.FieldStatus:
		return engine.MutateResult{Label: out.StatusLabel}, nil
	case mutate.FieldPriority:
		return engine.MutateResult{Label: out.PriorityLabel}, nil
	case mutate.FieldMilestone:
		return engine.MutateResult{Label: out.MilestoneName}, nil
	}
	return engine.MutateResult{}, nil
}

func (c *Client) BulkMutate(ctx context.Context, ids []string, u mutate.BulkUpdate) (int, error) {
	in := struct {
		TaskIDs []string          `json:"taskIds"`
		Updates mutate.BulkUpdate `json:"updates"`
	}{ids, u}
	var out struct {
		Updated int `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, "/tasks/bulk-update", in, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *Client) BulkDelete(ctx context.Context, ids []string) (int, error) {
	in := struct {
		TaskIDs []string `json:"taskIds"`
	}{ids}
	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodPost, "/tasks/bulk-delete", in, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

func (c *Client) CreateTask(ctx context.Context, p engine.CreatePayload) (model.Task, error) {
	var out struct {
		Task *model.Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/tasks/json", p, &out); err != nil {
		return model.Task{}, err
	}
	if out.Task == nil || out.Task.ID == "" {
		return model.Task{}, fmt.Errorf("create task: reply carries no task")
	}
	return *out.Task, nil
}

func (c *Client) Reorder(ctx context.Context, ids []string) error {
	in := struct {
		TaskIDs []string `json:"taskIds"`
	}{ids}
	return c.do(ctx, http.MethodPost, "/tasks/reorder", in, nil)
}

func (c *Client) ChangeParent(ctx context.Context, taskID string, parentID *string, position *float64) (model.Task, error) {
	in := struct {
		ParentID *string  `json:"parentId"`
		Position *float64 `json:"position"`
	}{parentID, position}
	var out struct {
		Task *model.Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPatch, taskPath(taskID, "parent"), in, &out); err != nil {
		return model.Task{}, err
	}
	if out.Task == nil {
		return model.Task{}, nil
	}
	return *out.Task, nil
}

func (c *Client) UpdateAssignees(ctx context.Context, taskID, userID string, action engine.AssigneeAction) ([]model.UserRef, error) {
	in := struct {
		Action engine.AssigneeAction `json:"action"`
		UserID string                `json:"userId"`
	}{action, userID}
	var out struct {
		Assignees []model.UserRef `json:"assignees"`
	}
	if err := c.do(ctx, http.MethodPost, taskPath(taskID, "assignees"), in, &out); err != nil {
		return nil, err
	}
	if out.Assignees == nil {
		out.Assignees = []model.UserRef{}
	}
	return out.Assignees, nil
}

func prefsPath(viewKey string) string {
	return "/settings/task-table-preferences/" + url.PathEscape(viewKey)
}

// LoadViewPreference returns the stored blob, or nil when the service has none.
func (c *Client) LoadViewPreference(ctx context.Context, viewKey string) ([]byte, error) {
	var out struct {
		Preferences json.RawMessage `json:"preferences"`
	}
	if err := c.do(ctx, http.MethodGet, prefsPath(viewKey), nil, &out); err != nil {
		return nil, err
	}
	if p := bytes.TrimSpace(out.Preferences); len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return nil, nil
	}
	return []byte(out.Preferences), nil
}

func (c *Client) SaveViewPreference(ctx context.Context, viewKey string, blob []byte) error {
	return c.do(ctx, http.MethodPost, prefsPath(viewKey), json.RawMessage(blob), nil)
}
