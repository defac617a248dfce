package cli

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tasklens/internal/engine"
	"tasklens/internal/format"
	"tasklens/internal/prefs"
)

type columnsOut prefs.Columns

func (c columnsOut) Table() format.Grid {
	g := format.Grid{Headers: []string{"#", "Key", "Label", "Width", "Visible", "Sortable"}}
	for i, col := range c {
		width := strconv.Itoa(col.Width)
		if col.Width == 0 {
			width = "fill"
		}
		g.Rows = append(g.Rows, []string{strconv.Itoa(i), col.Key, col.Label, width, yesNo(col.Visible), yesNo(col.Sortable)})
	}
	return g
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newColumnsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Show or change the table columns of the view",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every column in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return columnsOp(cmd, app, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "hide <key>",
		Short: "Hide a column (the title column is always shown)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return columnsOp(cmd, app, func(e *engine.Engine) (tea.Cmd, error) {
				return refused(e.SetColumnVisible(args[0], false))("hide", args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <key>",
		Short: "Show a hidden column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return columnsOp(cmd, app, func(e *engine.Engine) (tea.Cmd, error) {
				return refused(e.SetColumnVisible(args[0], true))("show", args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "move <key> <index>",
		Short: "Move a column to a position in the full column list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return writeErr(cmd, fmt.Errorf("index: %w", err))
			}
			return columnsOp(cmd, app, func(e *engine.Engine) (tea.Cmd, error) {
				from := e.Columns().IndexOf(args[0])
				if from < 0 {
					return nil, fmt.Errorf("unknown column %q", args[0])
				}
				return refused(e.MoveColumn(from, to))("move", args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "width <key> <px>",
		Short: fmt.Sprintf("Resize a column (minimum %d)", prefs.MinColumnWidth),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := strconv.Atoi(args[1])
			if err != nil {
				return writeErr(cmd, fmt.Errorf("width: %w", err))
			}
			return columnsOp(cmd, app, func(e *engine.Engine) (tea.Cmd, error) {
				return refused(e.ResizeColumn(args[0], w))("resize", args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return columnsOp(cmd, app, func(e *engine.Engine) (tea.Cmd, error) {
				return e.ResetColumns(), nil
			})
		},
	})
	return cmd
}

// refused turns a rejected column change into an error.
func refused(c tea.Cmd, ok bool) func(verb, key string) (tea.Cmd, error) {
	return func(verb, key string) (tea.Cmd, error) {
		if !ok {
			return nil, fmt.Errorf("cannot %s column %q", verb, key)
		}
		return c, nil
	}
}

// columnsOp applies op to the saved view and prints the resulting columns.
func columnsOp(cmd *cobra.Command, app *App, op func(*engine.Engine) (tea.Cmd, error)) error {
	ctx := cmd.Context()
	s, err := openStarted(ctx, app, sessionOpts{persistView: op != nil})
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.close()
	if op != nil {
		c, err := op(s.eng)
		if err != nil {
			return writeErr(cmd, err)
		}
		if err := s.drive(ctx, c); err != nil {
			return writeErr(cmd, err)
		}
	}
	return writeOut(cmd, app, columnsOut(s.eng.Columns()))
}
