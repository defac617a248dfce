package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tasklens/internal/engine"
	"tasklens/internal/model"
	"tasklens/internal/mutate"
	"tasklens/internal/statusutil"
	"tasklens/internal/taskstore"
)

var (
	ErrCycle        = errors.New("task cannot be moved under itself")
	ErrTooDeep      = errors.New("maximum nesting depth reached")
	ErrMixedParents = errors.New("reordered tasks must share a parent")
)

var _ engine.Backend = (*Store)(nil)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectTasks = `SELECT t.json, t.parent_id, t.position,
	(SELECT COUNT(1) FROM tasks c WHERE c.parent_id = t.id),
	(SELECT COUNT(1) FROM tasks c WHERE c.parent_id = t.id AND c.status = ?)
	FROM tasks t`

func readTasks(ctx context.Context, q querier, where string, args ...any) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx, selectTasks+` WHERE `+where+` ORDER BY t.position, t.id`,
		append([]any{statusutil.StatusCompleted}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		var (
			js, parent      string
			pos             float64
			total, finished int
		)
		if err := rows.Scan(&js, &parent, &pos, &total, &finished); err != nil {
			return nil, err
		}
		var t model.Task
		if err := json.Unmarshal([]byte(js), &t); err != nil {
			return nil, err
		}
		t.ParentID = nil
		if parent != "" {
			t.ParentID = model.StringPtr(parent)
		}
		t.Position = pos
		t.SubtaskCount, t.CompletedSubtaskCount = total, finished
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func getTask(ctx context.Context, q querier, id string) (model.Task, error) {
	xs, err := readTasks(ctx, q, `t.id = ?`, id)
	if err != nil {
		return model.Task{}, err
	}
	if len(xs) == 0 {
		return model.Task{}, mutate.NotFoundError{Kind: "task", ID: id}
	}
	return xs[0], nil
}

// writeTask upserts t. Child counts are derived on read and never stored.
func writeTask(ctx context.Context, q querier, t model.Task) error {
	model.Normalize(&t)
	t.SubtaskCount, t.CompletedSubtaskCount = 0, 0
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT OR REPLACE INTO tasks(id, parent_id, position, status, json, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?)`,
		t.ID, t.Parent(), t.Position, t.Status.Value, string(raw), time.Now().UTC().UnixMilli())
	return err
}

func nextPosition(ctx context.Context, q querier, parentID string) (float64, error) {
	var top sql.NullFloat64
	if err := q.QueryRowContext(ctx, `SELECT MAX(position) FROM tasks WHERE parent_id = ?`, parentID).Scan(&top); err != nil {
		return 0, err
	}
	if !top.Valid {
		return 0, nil
	}
	return top.Float64 + 1, nil
}

// depth counts ancestors of id. The walk stops at the first repeated id.
func depth(ctx context.Context, q querier, id string) (int, error) {
	seen := map[string]bool{id: true}
	n := 0
	cur := id
	for {
		var parent string
		err := q.QueryRowContext(ctx, `SELECT parent_id FROM tasks WHERE id = ?`, cur).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		if parent == "" || seen[parent] {
			return n, nil
		}
		seen[parent] = true
		n++
		cur = parent
	}
}

func subtreeIDs(ctx context.Context, q querier, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `WITH RECURSIVE sub(id) AS (
			SELECT id FROM tasks WHERE id = ?
			UNION
			SELECT t.id FROM tasks t JOIN sub ON t.parent_id = sub.id
		) SELECT id FROM sub`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// height is the number of levels below id (0 for a leaf).
func height(ctx context.Context, q querier, id string) (int, error) {
	var h sql.NullInt64
	err := q.QueryRowContext(ctx, `WITH RECURSIVE sub(id, lvl) AS (
			SELECT id, 0 FROM tasks WHERE id = ?
			UNION
			SELECT t.id, sub.lvl + 1 FROM tasks t JOIN sub ON t.parent_id = sub.id WHERE sub.lvl < 16
		) SELECT MAX(lvl) FROM sub`, id).Scan(&h)
	if err != nil {
		return 0, err
	}
	return int(h.Int64), nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ListTasks returns the root tasks with their child counts.
func (s *Store) ListTasks(ctx context.Context) ([]model.Task, error) {
	return readTasks(ctx, s.db, `t.parent_id = ''`)
}

// FetchChildren returns the direct children of taskID.
func (s *Store) FetchChildren(ctx context.Context, taskID string) ([]model.Task, error) {
	var out []model.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTask(ctx, tx, taskID); err != nil {
			return err
		}
		xs, err := readTasks(ctx, tx, `t.parent_id = ?`, taskID)
		out = xs
		return err
	})
	return out, err
}

func (s *Store) Task(ctx context.Context, taskID string) (model.Task, error) {
	return getTask(ctx, s.db, taskID)
}

// AllTasks returns every task, roots and descendants.
func (s *Store) AllTasks(ctx context.Context) ([]model.Task, error) {
	return readTasks(ctx, s.db, `1 = 1`)
}

func (s *Store) MutateField(ctx context.Context, taskID string, field mutate.Field, value string) (engine.MutateResult, error) {
	var out engine.MutateResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		cat, err := catalog(ctx, tx)
		if err != nil {
			return err
		}
		res, err := mutate.Apply(&t, field, value, cat)
		if err != nil {
			return err
		}
		out.Label = res.Label
		return writeTask(ctx, tx, t)
	})
	if err == nil {
		s.log.WithFields(logrus.Fields{"op": "mutate", "task_id": taskID, "field": field}).Debug("task updated")
	}
	return out, err
}

// BulkMutate applies u to every id in one transaction: one missing id fails them all.
func (s *Store) BulkMutate(ctx context.Context, ids []string, u mutate.BulkUpdate) (int, error) {
	if err := u.Validate(); err != nil {
		return 0, err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cat, err := catalog(ctx, tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			t, err := getTask(ctx, tx, id)
			if err != nil {
				return err
			}
			if _, err := mutate.ApplyBulk(&t, u, cat); err != nil {
				return fmt.Errorf("task %s: %w", id, err)
			}
			if err := writeTask(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// BulkDelete removes each id together with its descendants and reports how many
// rows went away.
func (s *Store) BulkDelete(ctx context.Context, ids []string) (int, error) {
	n := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			sub, err := subtreeIDs(ctx, tx, id)
			if err != nil {
				return err
			}
			for _, d := range sub {
				res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, d)
				if err != nil {
					return err
				}
				k, _ := res.RowsAffected()
				n += int(k)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) CreateTask(ctx context.Context, p engine.CreatePayload) (model.Task, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return model.Task{}, mutate.InvalidValueError{Field: mutate.FieldTitle, Value: p.Title, Err: errors.New("title is empty")}
	}
	var out model.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		parent := ""
		if p.ParentID != nil {
			parent = strings.TrimSpace(*p.ParentID)
		}
		if parent != "" {
			if _, err := getTask(ctx, tx, parent); err != nil {
				return err
			}
			d, err := depth(ctx, tx, parent)
			if err != nil {
				return err
			}
			if d >= taskstore.MaxDepth {
				return ErrTooDeep
			}
		}
		t := model.Task{
			ID:          uuid.NewString(),
			Title:       title,
			Description: p.Description,
			Status:      model.StatusRef{Value: p.Status},
			Priority:    model.PriorityRef{Value: p.Priority},
			MilestoneID: p.MilestoneID,
			DueDate:     p.DueDate,
			StartDate:   p.StartDate,
		}
		if parent != "" {
			t.ParentID = model.StringPtr(parent)
		}
		if p.Position != nil {
			t.Position = *p.Position
		} else {
			pos, err := nextPosition(ctx, tx, parent)
			if err != nil {
				return err
			}
			t.Position = pos
		}
		if err := writeTask(ctx, tx, t); err != nil {
			return err
		}
		got, err := getTask(ctx, tx, t.ID)
		out = got
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	s.log.WithFields(logrus.Fields{"op": "create", "task_id": out.ID}).Debug("task created")
	return out, nil
}

// Reorder rewrites sibling positions to 0..n-1 in the given order.
func (s *Store) Reorder(ctx context.Context, ids []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		parent := ""
		for i, id := range ids {
			t, err := getTask(ctx, tx, id)
			if err != nil {
				return err
			}
			if i == 0 {
				parent = t.Parent()
			} else if t.Parent() != parent {
				return ErrMixedParents
			}
			if _, err := tx.ExecContext(ctx, `UPDATE tasks SET position = ?, updated_at_unixms = ? WHERE id = ?`,
				float64(i), time.Now().UTC().UnixMilli(), id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ChangeParent moves taskID under parentID (nil for a root). A nil position appends.
func (s *Store) ChangeParent(ctx context.Context, taskID string, parentID *string, position *float64) (model.Task, error) {
	var out model.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		parent := ""
		if parentID != nil {
			parent = strings.TrimSpace(*parentID)
		}
		if parent != "" {
			if _, err := getTask(ctx, tx, parent); err != nil {
				return err
			}
			sub, err := subtreeIDs(ctx, tx, taskID)
			if err != nil {
				return err
			}
			for _, id := range sub {
				if id == parent {
					return ErrCycle
				}
			}
			d, err := depth(ctx, tx, parent)
			if err != nil {
				return err
			}
			h, err := height(ctx, tx, taskID)
			if err != nil {
				return err
			}
			if d+1+h > taskstore.MaxDepth {
				return ErrTooDeep
			}
			t.ParentID = model.StringPtr(parent)
		} else {
			t.ParentID = nil
		}
		if position != nil {
			t.Position = *position
		} else {
			pos, err := nextPosition(ctx, tx, parent)
			if err != nil {
				return err
			}
			t.Position = pos
		}
		if err := writeTask(ctx, tx, t); err != nil {
			return err
		}
		got, err := getTask(ctx, tx, taskID)
		out = got
		return err
	})
	return out, err
}

func (s *Store) UpdateAssignees(ctx context.Context, taskID, userID string, action engine.AssigneeAction) ([]model.UserRef, error) {
	var out []model.UserRef
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		var next []model.UserRef
		for _, u := range t.Assignees {
			if u.ID != userID {
				next = append(next, u)
			}
		}
		switch action {
		case engine.AssigneeAdd:
			var name string
			err := tx.QueryRowContext(ctx, `SELECT full_name FROM users WHERE id = ?`, userID).Scan(&name)
			if errors.Is(err, sql.ErrNoRows) {
				return mutate.NotFoundError{Kind: "user", ID: userID}
			}
			if err != nil {
				return err
			}
			next = append(next, model.UserRef{ID: userID, FullName: name})
		case engine.AssigneeRemove:
		default:
			return fmt.Errorf("unknown assignee action %q", action)
		}
		t.Assignees = next
		out = append([]model.UserRef{}, next...)
		return writeTask(ctx, tx, t)
	})
	return out, err
}
