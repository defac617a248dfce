package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"tasklens/internal/engine"
	"tasklens/internal/grouping"
	"tasklens/internal/projection"
)

func newCreateCmd(app *App) *cobra.Command {
	var title string
	var parent string
	var above string
	var below string
	var groupKey string
	var group string

	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a task",
		Long: strings.TrimSpace(`
Create a task at the root, as a subtask (--parent), next to an existing task
(--above/--below, same parent and milestone), or inside a bucket of a grouping
(--group-key, with --group or the saved grouping of the view). Bucket creation
takes the bucket's status, priority or milestone.
`),
		Example: strings.TrimSpace(`
  tasklens create "Write release notes"
  tasklens create --title "Load test" --parent "Billing migration"
  tasklens create --title "Rollback plan" --below "Dual-write period"
  tasklens create --title "Triage" --group status --group-key in_review
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" && len(args) == 1 {
				title = args[0]
			}
			if strings.TrimSpace(title) == "" {
				return writeErr(cmd, errors.New("missing title (pass it as an argument or with --title)"))
			}
			if countSet(parent, above, below, groupKey) > 1 {
				return writeErr(cmd, errors.New("use at most one of --parent, --above, --below, --group-key"))
			}

			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()

			req := engine.CreateRequest{Title: title, GroupKey: groupKey}
			switch {
			case parent != "":
				if req.ParentID, err = s.resolveTask(ctx, parent); err != nil {
					return writeErr(cmd, err)
				}
				// Siblings arrive before the create so the new task is the only new id.
				if err := s.drive(ctx, s.eng.Expand(req.ParentID)); err != nil {
					return writeErr(cmd, err)
				}
			case above != "" || below != "":
				ref, placement := below, projection.Below
				if above != "" {
					ref, placement = above, projection.Above
				}
				if req.TargetID, err = s.resolveTask(ctx, ref); err != nil {
					return writeErr(cmd, err)
				}
				req.Placement = placement
			}
			if group != "" {
				mode, err := grouping.ParseMode(group)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := s.drive(ctx, s.eng.SetGroupMode(mode)); err != nil {
					return writeErr(cmd, err)
				}
			}

			before := map[string]bool{}
			for _, t := range s.eng.Tasks() {
				before[t.ID] = true
			}
			c, err := s.eng.Create(req)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.drive(ctx, c); err != nil {
				return writeErr(cmd, err)
			}
			for _, t := range s.eng.Tasks() {
				if !before[t.ID] {
					return writeOut(cmd, app, taskOut{Task: t, cat: s.eng.Catalog()})
				}
			}
			return writeErr(cmd, errors.New("create returned no task"))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&parent, "parent", "", "Create as a subtask of this task")
	cmd.Flags().StringVar(&above, "above", "", "Create directly above this task")
	cmd.Flags().StringVar(&below, "below", "", "Create directly below this task")
	cmd.Flags().StringVar(&groupKey, "group-key", "", "Create inside this bucket of the active grouping")
	cmd.Flags().StringVar(&group, "group", "", "Grouping used with --group-key (not saved)")
	return cmd
}

func countSet(vals ...string) int {
	n := 0
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
