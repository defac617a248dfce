package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tasklens/internal/model"
)

type seedTask struct {
	title     string
	status    string
	priority  string
	milestone string
	due       int // days from today; 0 means no due date
	assignees []string
	tags      []string
	desc      string
	children  []seedTask
}

var seedMilestones = []model.Milestone{
	{ID: "ms-beta", Name: "Beta"},
	{ID: "ms-launch", Name: "Launch"},
}

var seedUsers = []model.UserRef{
	{ID: "u-ada", FullName: "Ada Lovelace"},
	{ID: "u-grace", FullName: "Grace Hopper"},
	{ID: "u-linus", FullName: "Linus Torvalds"},
}

var seedTasks = []seedTask{
	{
		title: "Ship onboarding flow", status: "in_progress", priority: "high", milestone: "ms-beta", due: 5,
		assignees: []string{"u-ada"}, tags: []string{"frontend"},
		desc: "## Goal\n\nNew users reach their first task in under a minute.\n\n- welcome screen\n- sample project\n",
		children: []seedTask{
			{title: "Design welcome screen", status: "completed", priority: "medium", milestone: "ms-beta"},
			{
				title: "Sample project import", status: "in_progress", priority: "medium", milestone: "ms-beta",
				assignees: []string{"u-grace"},
				children: []seedTask{
					{title: "Write fixture tasks", status: "todo", priority: "low", milestone: "ms-beta"},
					{title: "Import endpoint", status: "in_review", priority: "high", milestone: "ms-beta", due: -1},
				},
			},
			{title: "Copy review", status: "todo", priority: "low", milestone: "ms-beta", tags: []string{"docs"}},
		},
	},
	{
		title: "Billing migration", status: "todo", priority: "high", milestone: "ms-launch", due: 14,
		assignees: []string{"u-linus"}, tags: []string{"backend"},
		children: []seedTask{
			{title: "Export legacy invoices", status: "todo", priority: "medium", milestone: "ms-launch"},
			{title: "Dual-write period", status: "todo", priority: "medium", milestone: "ms-launch"},
		},
	},
	{title: "Fix flaky login test", status: "in_review", priority: "medium", due: -2, assignees: []string{"u-grace"}, tags: []string{"backend", "ci"}},
	{title: "Quarterly roadmap", status: "todo", priority: "none", desc: "Draft the **next quarter** roadmap."},
	{title: "Archive old dashboards", status: "completed", priority: "low"},
}

// Seed fills an empty store with a small demo workspace and returns how many tasks
// it wrote. A store that already holds tasks is left alone.
func (s *Store) Seed(ctx context.Context) (int, error) {
	n := 0
	today := model.Today()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks`).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		for i, m := range seedMilestones {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO milestones(id, name, rank) VALUES(?, ?, ?)`, m.ID, m.Name, i); err != nil {
				return err
			}
		}
		users := map[string]model.UserRef{}
		for _, u := range seedUsers {
			users[u.ID] = u
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO users(id, full_name) VALUES(?, ?)`, u.ID, u.FullName); err != nil {
				return err
			}
		}

		var walk func(xs []seedTask, parent string) error
		walk = func(xs []seedTask, parent string) error {
			for i, st := range xs {
				t := model.Task{
					ID:          uuid.NewString(),
					Title:       st.title,
					Description: st.desc,
					Status:      model.StatusRef{Value: st.status},
					Priority:    model.PriorityRef{Value: st.priority},
					Position:    float64(i),
				}
				if parent != "" {
					t.ParentID = model.StringPtr(parent)
				}
				if st.milestone != "" {
					t.MilestoneID = model.StringPtr(st.milestone)
				}
				if st.due != 0 {
					d := today.AddDays(st.due)
					t.DueDate = &d
				}
				for _, id := range st.assignees {
					t.Assignees = append(t.Assignees, users[id])
				}
				for _, name := range st.tags {
					t.Tags = append(t.Tags, model.Tag{Name: name})
				}
				if err := writeTask(ctx, tx, t); err != nil {
					return err
				}
				n++
				if err := walk(st.children, t.ID); err != nil {
					return err
				}
			}
			return nil
		}
		return walk(seedTasks, "")
	})
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"op": "seed", "tasks": n}).Info("seeded store")
	return n, nil
}
