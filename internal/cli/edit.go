package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"tasklens/internal/model"
	"tasklens/internal/mutate"
)

func editableFieldNames() string {
	var names []string
	for _, f := range mutate.EditableFields() {
		names = append(names, string(f))
	}
	return strings.Join(names, "|")
}

func newSetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <task> <field> <value>",
		Short: "Set one field of a task (" + editableFieldNames() + ")",
		Long: strings.TrimSpace(`
Set one field of a task. The task is an id or a title; approximate titles are
accepted when they match one task clearly.

Dates take YYYY-MM-DD; an empty value clears a date or the milestone.
`),
		Example: strings.TrimSpace(`
  tasklens set "Billing migration" status in_progress
  tasklens set 7f3c… dueDate 2026-11-02
  tasklens set "Copy review" milestone ""
`),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := mutate.ParseField(args[1])
			if err != nil {
				return writeErr(cmd, fmt.Errorf("%w: %q (want %s)", err, args[1], editableFieldNames()))
			}
			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()

			id, err := s.resolveTask(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := s.eng.Commit(id, field, args[2])
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.drive(ctx, c); err != nil {
				return writeErr(cmd, err)
			}
			t, err := s.task(id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, taskOut{Task: t, cat: s.eng.Catalog()})
		},
	}
	return cmd
}

func newAssignCmd(app *App) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "assign <task> <user>",
		Short: "Add (or with --remove, drop) an assignee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()

			id, err := s.resolveTask(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			cat := s.eng.Catalog().WithTaskAssignees(s.eng.Tasks())
			user, err := resolveUser(cat, args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := s.task(id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if assigned(t, user.ID) == remove {
				c, err := s.eng.ToggleAssignee(id, user.ID)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := s.drive(ctx, c); err != nil {
					return writeErr(cmd, err)
				}
				if t, err = s.task(id); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, taskOut{Task: t, cat: s.eng.Catalog()})
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the user instead of adding")
	return cmd
}

func assigned(t model.Task, userID string) bool {
	return slices.ContainsFunc(t.Assignees, func(u model.UserRef) bool { return u.ID == userID })
}
