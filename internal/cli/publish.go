package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"tasklens/internal/publish"
)

func newPublishCmd(app *App) *cobra.Command {
	var to string
	var task string
	var title string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write the task tree as markdown files (index.md plus one page per task)",
		Example: strings.TrimSpace(`
  tasklens publish --to ./site
  tasklens publish --to ./site --task "Billing migration" --overwrite
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()
			if err := s.loadAll(ctx); err != nil {
				return writeErr(cmd, err)
			}
			opt := publish.WriteOptions{Title: title, Overwrite: overwrite}
			if task != "" {
				if opt.RootID, err = s.resolveTask(ctx, task); err != nil {
					return writeErr(cmd, err)
				}
			}
			res, err := publish.WriteTree(s.eng.Tasks(), s.eng.Catalog(), to, opt)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, res)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Output directory (required)")
	cmd.Flags().StringVar(&task, "task", "", "Only publish this task and its subtasks")
	cmd.Flags().StringVar(&title, "title", "Tasks", "Title of index.md")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
