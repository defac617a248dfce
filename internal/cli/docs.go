package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasklens/internal/docs"
	"tasklens/internal/format"
)

type docsList struct {
	Topics []string `json:"topics"`
}

func (l docsList) Table() format.Grid {
	g := format.Grid{Headers: []string{"Topic"}}
	for _, t := range l.Topics {
		g.Rows = append(g.Rows, []string{t})
	}
	return g
}

type docsTopic struct {
	Topic    string `json:"topic"`
	Markdown string `json:"markdown"`
}

func newDocsCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show documentation topics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, docsList{Topics: docs.Topics()}, "tasklens docs <topic>")
			}

			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown docs topic: %q (run `tasklens docs` to list topics)", topic))
			}
			switch {
			case raw:
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			case isTable(app):
				_, err := fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(body, markdownWidth))
				return err
			}
			return writeOut(cmd, app, docsTopic{Topic: topic, Markdown: body})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no JSON envelope)")
	return cmd
}
