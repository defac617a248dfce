package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tasklens/internal/mutate"
)

type bulkResult struct {
	Op    string       `json:"op"`
	IDs   []string     `json:"ids"`
	Count int          `json:"count"`
	Tasks []taskResult `json:"tasks,omitempty"`
}

type taskResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

func newBulkCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply one change to several tasks in a single backend call",
	}
	cmd.AddCommand(newBulkSetCmd(app))
	cmd.AddCommand(newBulkDeleteCmd(app))
	return cmd
}

// selectTasks resolves refs and selects them in a fully revealed projection.
func selectTasks(ctx context.Context, s *session, refs []string) ([]string, error) {
	if err := s.revealAll(ctx); err != nil {
		return nil, err
	}
	for _, ref := range refs {
		id, err := s.resolveTask(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !s.eng.Select(id, true) {
			return nil, fmt.Errorf("task %s is not selectable", id)
		}
	}
	return s.eng.Selected(), nil
}

func newBulkSetCmd(app *App) *cobra.Command {
	var status string
	var priority string
	var milestone string

	cmd := &cobra.Command{
		Use:   "set <task>...",
		Short: "Set status, priority and/or milestone on several tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u mutate.BulkUpdate
			if cmd.Flags().Changed("status") {
				u.Status = &status
			}
			if cmd.Flags().Changed("priority") {
				u.Priority = &priority
			}
			if cmd.Flags().Changed("milestone") {
				u.MilestoneID = &milestone
			}
			if err := u.Validate(); err != nil {
				return writeErr(cmd, err)
			}

			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()
			ids, err := selectTasks(ctx, s, args)
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := s.eng.BulkMutate(u)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.drive(ctx, c); err != nil {
				return writeErr(cmd, err)
			}
			out := bulkResult{Op: "set", IDs: ids, Count: len(ids)}
			for _, id := range ids {
				if t, ok := s.eng.Task(id); ok {
					out.Tasks = append(out.Tasks, taskResult{ID: t.ID, Title: t.Title, Status: t.Status.Value, Priority: t.Priority.Value})
				}
			}
			return writeOut(cmd, app, out)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "New status id")
	cmd.Flags().StringVar(&priority, "priority", "", "New priority id")
	cmd.Flags().StringVar(&milestone, "milestone", "", "New milestone id (empty clears)")
	return cmd
}

func newBulkDeleteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <task>...",
		Short: "Delete several tasks and their subtasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()
			ids, err := selectTasks(ctx, s, args)
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := s.eng.BulkDelete()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.drive(ctx, c); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, bulkResult{Op: "delete", IDs: ids, Count: len(ids)})
		},
	}
	return cmd
}
