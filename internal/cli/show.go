package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"tasklens/internal/model"
	"tasklens/internal/publish"
	"tasklens/internal/taskstore"
)

const markdownWidth = 80

type showPayload struct {
	Task      model.Task   `json:"task"`
	Path      []string     `json:"path,omitempty"`
	Milestone string       `json:"milestone,omitempty"`
	Children  []model.Task `json:"children,omitempty"`
}

func newShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task>",
		Short: "Show one task with its subtasks (table format renders the description as markdown)",
		Args:  cobra.ExactArgs(1),
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
			if err := s.drive(ctx, s.eng.Expand(id)); err != nil {
				return writeErr(cmd, err)
			}
			t, err := s.task(id)
			if err != nil {
				return writeErr(cmd, err)
			}
			ix := taskstore.IndexOf(s.eng.Tasks())
			out := showPayload{Task: t}
			for _, cid := range ix.ChildrenOf(id) {
				if c, ok := ix.Task(cid); ok {
					out.Children = append(out.Children, c)
				}
			}
			for _, aid := range ix.Ancestors(id) {
				if a, ok := ix.Task(aid); ok {
					out.Path = append([]string{a.Title}, out.Path...)
				}
			}
			if name, ok := s.eng.Catalog().MilestoneName(t.Milestone()); ok {
				out.Milestone = name
			}

			if isTable(app) {
				md, err := publish.RenderTaskMarkdown(ix, s.eng.Catalog(), id, publish.RenderOptions{Breadcrumb: true})
				if err != nil {
					return writeErr(cmd, err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(md, markdownWidth))
				return err
			}
			return writeOut(cmd, app, out)
		},
	}
	return cmd
}

// renderMarkdown renders md for the terminal, falling back to the raw text when
// the renderer fails. A fixed style avoids terminal background queries.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(markdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func markdownStyle() string {
	if lipgloss.ColorProfile() == termenv.Ascii {
		return styles.NoTTYStyle
	}
	if lipgloss.HasDarkBackground() {
		return styles.DarkStyle
	}
	return styles.LightStyle
}
