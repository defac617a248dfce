package cli

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tasklens/internal/engine"
	"tasklens/internal/grouping"
	"tasklens/internal/sorting"
)

// manualOrder switches the session to the ungrouped position order moves are defined
// in. It is not saved.
func manualOrder(ctx context.Context, s *session) error {
	if err := s.drive(ctx, s.eng.SetGroupMode(grouping.ModeNone)); err != nil {
		return err
	}
	return s.drive(ctx, s.eng.SetSort(sorting.Default()))
}

func newMoveCmd(app *App) *cobra.Command {
	var before string
	var after string
	var into string

	cmd := &cobra.Command{
		Use:   "move <task>",
		Short: "Reorder a task among its siblings, or move it under another task",
		Example: strings.TrimSpace(`
  tasklens move "Copy review" --before "Design welcome screen"
  tasklens move "Quarterly roadmap" --after "Billing migration"
  tasklens move "Fix flaky login test" --into "Billing migration"
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if countSet(before, after, into) != 1 {
				return writeErr(cmd, errors.New("pass exactly one of --before, --after, --into"))
			}
			target, pos := before, engine.DropBefore
			switch {
			case after != "":
				target, pos = after, engine.DropAfter
			case into != "":
				target, pos = into, engine.DropChild
			}

			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()
			if err := manualOrder(ctx, s); err != nil {
				return writeErr(cmd, err)
			}

			id, err := s.resolveTask(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			targetID, err := s.resolveTask(ctx, target)
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := s.eng.Move(id, targetID, pos)
			if err != nil {
				return writeErr(cmd, err)
			}
			return runTaskCmd(cmd, app, s, id, c)
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Place the task directly before this sibling")
	cmd.Flags().StringVar(&after, "after", "", "Place the task directly after this sibling")
	cmd.Flags().StringVar(&into, "into", "", "Make the task the last subtask of this task")
	return cmd
}

func newPromoteCmd(app *App) *cobra.Command {
	return newLevelCmd(app, "promote <task>", "Move a subtask up one level, right after its parent",
		func(e *engine.Engine, id string) (tea.Cmd, error) { return e.Promote(id) })
}

func newDemoteCmd(app *App) *cobra.Command {
	return newLevelCmd(app, "demote <task>", "Make a task the last subtask of its previous sibling",
		func(e *engine.Engine, id string) (tea.Cmd, error) { return e.Demote(id) })
}

func newLevelCmd(app *App, use, short string, op func(*engine.Engine, string) (tea.Cmd, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()
			if err := manualOrder(ctx, s); err != nil {
				return writeErr(cmd, err)
			}
			id, err := s.resolveTask(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			// Siblings must be present to find the previous one.
			if err := s.loadAll(ctx); err != nil {
				return writeErr(cmd, err)
			}
			c, err := op(s.eng, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return runTaskCmd(cmd, app, s, id, c)
		},
	}
}

// runTaskCmd drives c and prints the resulting state of task id.
func runTaskCmd(cmd *cobra.Command, app *App, s *session, id string, c tea.Cmd) error {
	if err := s.drive(cmd.Context(), c); err != nil {
		return writeErr(cmd, err)
	}
	t, err := s.task(id)
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, taskOut{Task: t, cat: s.eng.Catalog()})
}
