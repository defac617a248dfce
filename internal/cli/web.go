package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tasklens/internal/webtui"
)

func newWebCmd(app *App) *cobra.Command {
	var addr string
	var maxSessions int

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the interactive table in a browser terminal",
		Long: `Serves a page that runs one tasklens TUI per browser tab on a pseudo-terminal.
Sessions share the store, so run it with the Redis event bus to see edits from
other tabs live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The child sessions resolve the same store and view.
			var childArgs []string
			for _, f := range []struct{ flag, val string }{
				{"--dir", app.cfg.Dir},
				{"--backend", app.cfg.Backend},
				{"--api-url", app.cfg.APIURL},
				{"--view", app.cfg.ViewKey},
			} {
				if f.val != "" {
					childArgs = append(childArgs, f.flag, f.val)
				}
			}
			title := app.cfg.Dir
			if app.cfg.APIURL != "" {
				title = app.cfg.APIURL
			}
			srv, err := webtui.NewServer(webtui.ServerConfig{
				Addr:        addr,
				Args:        childArgs,
				Title:       title,
				MaxSessions: maxSessions,
				Log:         app.log,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return serve(cmd.Context(), app, srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "Listen address")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 4, "Concurrent terminals (0: unlimited)")
	return cmd
}

func serve(ctx context.Context, app *App, srv *webtui.Server) error {
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return err
	}
	hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	app.log.WithField("addr", "http://"+ln.Addr().String()).Info("serving")

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}
