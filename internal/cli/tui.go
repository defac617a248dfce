package cli

import (
	"github.com/spf13/cobra"

	"tasklens/internal/tui"
)

func runTUI(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, app, sessionOpts{persistView: true, interactive: true})
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.close()
	if err := tui.Run(ctx, s.eng, tui.Options{Log: app.log}); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
