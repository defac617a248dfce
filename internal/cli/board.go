package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"tasklens/internal/board"
	"tasklens/internal/format"
	"tasklens/internal/model"
)

type boardCard struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
}

type boardColumn struct {
	Status string      `json:"status"`
	Label  string      `json:"label"`
	Cards  []boardCard `json:"cards"`
}

func boardColumns(cols []board.Column) []boardColumn {
	out := make([]boardColumn, 0, len(cols))
	for _, c := range cols {
		bc := boardColumn{Status: c.StatusID, Label: c.Label, Cards: []boardCard{}}
		for _, card := range c.Cards {
			bc.Cards = append(bc.Cards, boardCard{
				ID:       card.Task.ID,
				Title:    card.Task.Title,
				Priority: card.Task.Priority.Value,
				Done:     card.Done,
				Total:    card.Total,
			})
		}
		out = append(out, bc)
	}
	return out
}

func newBoardCmd(app *App) *cobra.Command {
	var width int
	var height int
	var focus string
	var watch bool

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show root tasks as a kanban board, one column per status",
		Long: `With --watch the board stays open and redraws whenever another tasklens
process changes or deletes a task. Watching needs the shared Redis event bus
(redisAddr / TASKLENS_REDIS_ADDR).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && app.cfg.RedisAddr == "" {
				return writeErr(cmd, errors.New("--watch needs a shared event bus; set TASKLENS_REDIS_ADDR"))
			}
			ctx := cmd.Context()
			s, err := openStarted(ctx, app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.close()

			sel := board.Selection{}
			if focus != "" {
				if sel.TaskID, err = s.resolveTask(ctx, focus); err != nil {
					return writeErr(cmd, err)
				}
			}
			b := board.New(s.eng.Tasks(), s.eng.Catalog(), s.eng.Source())
			frame := func() error {
				return writeBoard(cmd.OutOrStdout(), app, b, sel, width, height, watch)
			}
			if !watch {
				return frame()
			}

			// Subscribe before the first frame so no change slips in between.
			ch, stop, err := s.bus.Subscribe(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer stop()
			if err := frame(); err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-ch:
					if !ok {
						return nil
					}
					if !b.Apply(ev) {
						continue
					}
					s.app.log.WithField("event", ev.Type).WithField("task_id", ev.TaskID).Debug("board updated")
					if err := frame(); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().IntVar(&width, "width", 120, "Board width in cells (table format)")
	cmd.Flags().IntVar(&height, "height", 0, "Column height in lines (0: as tall as needed)")
	cmd.Flags().StringVar(&focus, "focus", "", "Highlight this task")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and redraw on task changes from other processes")
	return cmd
}

func writeBoard(w io.Writer, app *App, b *board.Board, sel board.Selection, width, height int, header bool) error {
	cols := b.Columns()
	if !isTable(app) {
		if header {
			// One compact document per frame.
			return format.Write(w, envelope{Data: boardColumns(cols)}, app.Format, false)
		}
		return format.Write(w, envelope{Data: boardColumns(cols)}, app.Format, app.PrettyJSON)
	}
	if header {
		if _, err := fmt.Fprintf(w, "%d cards · %s\n", b.Len(), time.Now().Format("15:04:05")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, board.Render(cols, sel, model.Today(), width, height))
	return err
}
