package store

import (
	"context"
	"errors"
	"strings"

	"tasklens/internal/grouping"
	"tasklens/internal/model"
)

func catalog(ctx context.Context, q querier) (grouping.Catalog, error) {
	var cat grouping.Catalog
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM milestones ORDER BY rank, id`)
	if err != nil {
		return cat, err
	}
	for rows.Next() {
		var m model.Milestone
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			rows.Close()
			return cat, err
		}
		cat.Milestones = append(cat.Milestones, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cat, err
	}

	rows, err = q.QueryContext(ctx, `SELECT id, full_name FROM users ORDER BY full_name, id`)
	if err != nil {
		return cat, err
	}
	defer rows.Close()
	for rows.Next() {
		var u model.UserRef
		if err := rows.Scan(&u.ID, &u.FullName); err != nil {
			return cat, err
		}
		cat.Members = append(cat.Members, u)
	}
	return cat, rows.Err()
}

// Catalog lists the milestones (in rank order) and members known to the store.
func (s *Store) Catalog(ctx context.Context) (grouping.Catalog, error) {
	return catalog(ctx, s.db)
}

// AddMilestone inserts or renames a milestone. New milestones are ranked last.
func (s *Store) AddMilestone(ctx context.Context, m model.Milestone) error {
	m.ID, m.Name = strings.TrimSpace(m.ID), strings.TrimSpace(m.Name)
	if m.ID == "" || m.Name == "" {
		return errors.New("milestone needs an id and a name")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO milestones(id, name, rank)
		VALUES(?, ?, (SELECT COALESCE(MAX(rank), -1) + 1 FROM milestones))
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, m.ID, m.Name)
	return err
}

func (s *Store) AddUser(ctx context.Context, u model.UserRef) error {
	u.ID, u.FullName = strings.TrimSpace(u.ID), strings.TrimSpace(u.FullName)
	if u.ID == "" {
		return errors.New("user id is empty")
	}
	if u.FullName == "" {
		u.FullName = u.ID
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(id, full_name) VALUES(?, ?)
		ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name`, u.ID, u.FullName)
	return err
}
