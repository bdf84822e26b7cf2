package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iTwin/insights-api-sample-console-app/internal/format"
)

func newRunsCmd(a *app) *cobra.Command {
	var flags struct {
		limit  int
		output string
	}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the extraction runs launched from this machine, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireIModel(); err != nil {
				return err
			}
			mode, err := format.ParseMode(flags.output)
			if err != nil {
				return err
			}
			runs, err := a.openRuns()
			if err != nil {
				return err
			}
			defer runs.Close()

			list, err := runs.List(cmd.Context(), a.cfg.IModelID, flags.limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "No extraction runs recorded for iModel %s.\n", a.cfg.IModelID)
				return nil
			}

			tb := format.NewTable(mode)
			tb.Header("Job", "State", "Reason", "Started", "Finished", "Took")
			tb.Columns(
				format.ColumnConfig{Number: 3, MaxWidth: 40},
				format.ColumnConfig{Number: 6, Align: format.AlignRight},
			)
			for _, r := range list {
				took := "-"
				if r.Finished() {
					took = format.Duration(r.FinishedAt.Sub(r.StartedAt))
				}
				tb.Row(r.JobID, r.State, format.Dash(r.Reason),
					format.Timestamp(r.StartedAt), format.Timestamp(r.FinishedAt), took)
			}
			tb.Footer("", "Total", tb.Len())
			fmt.Fprintln(out, tb.String())
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", 20, "maximum runs to show; 0 shows all")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "table", "output format: table or markdown")
	return cmd
}
