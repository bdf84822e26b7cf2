package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
)

func newExtractCmd(a *app) *cobra.Command {
	var noWait bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run an extraction for the iModel and wait for it to finish",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireIModel(); err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			runs, err := a.openRuns()
			if err != nil {
				return err
			}
			defer runs.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			extraction := client.Extraction(a.cfg.IModelID)

			run, err := extraction.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run extraction: %s\n", run.ID)
			if _, err := runs.Record(ctx, a.cfg.IModelID, run.ID, string(insights.StateQueued)); err != nil {
				return err
			}

			if !noWait {
				if err := a.waitAndReport(ctx, out, extraction, runs, run.ID); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "Done.")
			return nil
		},
	}

	cmd.Flags().Duration("timeout", 0, "give up waiting after this long; 0 waits forever (default from poll.timeout)")
	cmd.Flags().Duration("interval", 0, "poll interval (default from poll.interval)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "launch the extraction and return; follow it later with status --wait")
	return cmd
}
