package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"tasklens/internal/config"
	"tasklens/internal/store"
)

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty local store with a demo workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.Backend != config.BackendSQLite {
				return writeErr(cmd, errors.New("seed only works with the local sqlite backend"))
			}
			dir, err := storeDir(app.cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			st, err := store.Open(ctx, dir, app.log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()
			n, err := st.Seed(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			var hints []string
			if n == 0 {
				hints = append(hints, "store already holds tasks; nothing was seeded")
			} else {
				hints = append(hints, "tasklens list --format table", "tasklens")
			}
			return writeOut(cmd, app, map[string]any{"dir": dir, "seeded": n}, hints...)
		},
	}
}
