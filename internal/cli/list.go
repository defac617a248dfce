package cli

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tasklens/internal/format"
	"tasklens/internal/grouping"
	"tasklens/internal/prefs"
	"tasklens/internal/projection"
	"tasklens/internal/sorting"
	"tasklens/internal/statusutil"
)

type listPayload struct {
	View     string            `json:"view"`
	GroupBy  grouping.Mode     `json:"groupBy"`
	Sort     string            `json:"sort"`
	Query    string            `json:"query,omitempty"`
	TaskRows int               `json:"taskRows"`
	Columns  []string          `json:"columns"`
	Items    []projection.Item `json:"items"`

	cols prefs.Columns
	cat  grouping.Catalog
}

func (p listPayload) Table() format.Grid {
	var cols prefs.Columns
	for _, c := range p.cols {
		if c.Key != "checkbox" {
			cols = append(cols, c)
		}
	}
	g := format.Grid{Styles: map[int]map[int]lipgloss.Style{}}
	for _, c := range cols {
		g.Headers = append(g.Headers, c.Label)
		g.Widths = append(g.Widths, projection.CellWidth(c.Width))
	}
	for _, it := range p.Items {
		row := make([]string, len(cols))
		if it.Kind == projection.KindGroup {
			h := it.Group
			chev := "▾"
			if h.Collapsed {
				chev = "▸"
			}
			if len(row) > 0 {
				row[0] = chev + " " + h.Label + " (" + strconv.Itoa(h.TaskCount) + ")"
			}
			g.Styles[len(g.Rows)] = map[int]lipgloss.Style{0: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(h.Color))}
			g.Rows = append(g.Rows, row)
			continue
		}
		r := it.Row
		styles := map[int]lipgloss.Style{}
		for i, c := range cols {
			switch c.Key {
			case prefs.TitleColumn:
				row[i] = treeTitle(*r)
			case "status":
				row[i] = r.Task.Status.Label
				styles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(statusutil.StatusColor(r.Task.Status.Value)))
			case "priority":
				row[i] = r.Task.Priority.Label
				styles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(statusutil.PriorityColor(r.Task.Priority.Value)))
			default:
				row[i] = projection.Cell(r.Task, c.Key, p.cat)
			}
		}
		g.Styles[len(g.Rows)] = styles
		g.Rows = append(g.Rows, row)
	}
	return g
}

func treeTitle(r projection.TaskRow) string {
	marker := "  "
	switch {
	case r.HasChildren && r.Expanded:
		marker = "▾ "
	case r.HasChildren || r.Task.SubtaskCount > 0:
		marker = "▸ "
	}
	return strings.Repeat("  ", r.Depth) + marker + r.Task.Title
}

func newListCmd(app *App) *cobra.Command {
	var group string
	var sortSpec string
	var query string
	var expand []string
	var expandAll bool
	var save bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the current projection of the task table",
		Example: strings.TrimSpace(`
  tasklens list --format table
  tasklens list --group dueDate --sort priority:desc
  tasklens list --search login --format table
  tasklens list --expand "Ship onboarding flow" --save
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{persistView: save})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()
			eng := s.eng

			if group != "" {
				mode, err := grouping.ParseMode(group)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := s.drive(ctx, eng.SetGroupMode(mode)); err != nil {
					return writeErr(cmd, err)
				}
			}
			if sortSpec != "" {
				st, err := sorting.Parse(sortSpec)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := s.drive(ctx, eng.SetSort(st)); err != nil {
					return writeErr(cmd, err)
				}
			}
			for _, ref := range expand {
				id, err := s.resolveTask(ctx, ref)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := s.drive(ctx, eng.Expand(id)); err != nil {
					return writeErr(cmd, err)
				}
			}
			if expandAll || strings.TrimSpace(query) != "" {
				// Search and expand-all only see loaded records.
				if err := s.loadAll(ctx); err != nil {
					return writeErr(cmd, err)
				}
			}
			if expandAll {
				if err := s.drive(ctx, eng.ExpandAll()); err != nil {
					return writeErr(cmd, err)
				}
			}
			eng.SetQuery(query)

			res := eng.Projection()
			var keys []string
			for _, c := range eng.Columns().Visible() {
				keys = append(keys, c.Key)
			}
			return writeOut(cmd, app, listPayload{
				View:     eng.ViewKey(),
				GroupBy:  eng.GroupMode(),
				Sort:     eng.SortState().String(),
				Query:    eng.Query(),
				TaskRows: res.TaskRows,
				Columns:  keys,
				Items:    res.Items,
				cols:     eng.Columns().Visible(),
				cat:      eng.Catalog(),
			})
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Group rows (none|status|priority|milestone|assignee|dueDate)")
	cmd.Flags().StringVar(&sortSpec, "sort", "", "Sort column and direction, e.g. title:asc or position")
	cmd.Flags().StringVar(&query, "search", "", "Only show matching tasks and their ancestors")
	cmd.Flags().StringArrayVar(&expand, "expand", nil, "Expand a task (id or title; repeatable)")
	cmd.Flags().BoolVar(&expandAll, "expand-all", false, "Expand every task")
	cmd.Flags().BoolVar(&save, "save", false, "Persist grouping, sort and expansion to the view preference")
	return cmd
}
