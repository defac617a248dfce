package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tasklens/internal/config"
	"tasklens/internal/format"
	"tasklens/internal/logging"
)

type App struct {
	Dir        string
	Backend    string
	APIURL     string
	ViewKey    string
	PrettyJSON bool
	Format     string
	NoColor    bool

	cfg       *config.Config
	log       *logrus.Logger
	logCloser io.Closer
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "tasklens",
		Short:        "Hierarchical task table: interactive TUI and scriptable commands",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive table
  tasklens

  # Create a demo workspace in ./.tasklens
  tasklens seed

  # The current projection, grouped by status
  tasklens list --group status --format table

  # Edit one field of a task found by approximate title
  tasklens set "onboarding" status completed
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := app.setup(cmd); err != nil {
			return writeErr(cmd, err)
		}
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		app.teardown()
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "Path to the .tasklens store dir (default: nearest .tasklens above the working directory)")
	cmd.PersistentFlags().StringVar(&app.Backend, "backend", "", "Task backend (sqlite|remote)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", "", "Base URL of the remote task API (with --backend remote)")
	cmd.PersistentFlags().StringVar(&app.ViewKey, "view", "", "View key the column/grouping/sort preferences are stored under")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TASKLENS_FORMAT", format.JSON), "Output format (json|edn|table)")
	cmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colors in table output")

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newSetCmd(app))
	cmd.AddCommand(newAssignCmd(app))
	cmd.AddCommand(newCreateCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newPromoteCmd(app))
	cmd.AddCommand(newDemoteCmd(app))
	cmd.AddCommand(newBulkCmd(app))
	cmd.AddCommand(newColumnsCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newWebCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// setup resolves the effective configuration (file, .env, environment, then flags)
// and the logger. The TUI never logs to the terminal it draws on.
func (app *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if app.Dir != "" {
		cfg.Dir = app.Dir
	}
	if app.Backend != "" {
		cfg.Backend = app.Backend
	}
	if app.APIURL != "" {
		cfg.APIURL = app.APIURL
	}
	if app.ViewKey != "" {
		cfg.ViewKey = app.ViewKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	app.cfg = cfg

	var fallback io.Writer
	if cmd != cmd.Root() {
		fallback = cmd.ErrOrStderr()
	}
	log, closer, err := logging.New(logging.Options{
		Level:     cfg.LogLevel,
		File:      cfg.LogFile,
		Fallback:  fallback,
		Component: "cli",
	})
	if err != nil {
		return err
	}
	app.log, app.logCloser = log, closer
	applyColorProfile(app.NoColor)
	return nil
}

func (app *App) teardown() {
	if app.logCloser != nil {
		_ = app.logCloser.Close()
		app.logCloser = nil
	}
}

// applyColorProfile picks the lipgloss profile for styled output. NO_COLOR and
// --no-color win; otherwise TERM/COLORTERM may upgrade what termenv detects.
func applyColorProfile(noColor bool) {
	if noColor || strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.ColorProfile()
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	switch {
	case profile == termenv.Ascii:
	case strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit"):
		profile = termenv.TrueColor
	case strings.Contains(term, "256color") && profile == termenv.ANSI:
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// envelope is the json/edn shape of every command result.
type envelope struct {
	Data  any      `json:"data"`
	Hints []string `json:"_hints,omitempty"`
}

// writeOut writes v wrapped in an envelope, or v itself as a table.
func writeOut(cmd *cobra.Command, app *App, v any, hints ...string) error {
	if isTable(app) {
		return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
	}
	return format.Write(cmd.OutOrStdout(), envelope{Data: v, Hints: hints}, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func isTable(app *App) bool {
	return strings.EqualFold(strings.TrimSpace(app.Format), format.Table)
}
