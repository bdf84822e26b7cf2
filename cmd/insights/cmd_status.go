package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iTwin/insights-api-sample-console-app/internal/format"
	"github.com/iTwin/insights-api-sample-console-app/internal/runlog"
)

func newStatusCmd(a *app) *cobra.Command {
	var flags struct {
		jobID string
		wait  bool
	}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of an extraction job (default: the latest run of the iModel)",
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
			jobID := flags.jobID
			if jobID == "" {
				latest, err := runs.Latest(ctx, a.cfg.IModelID)
				if errors.Is(err, runlog.ErrNotFound) {
					return fmt.Errorf("no extraction recorded for iModel %s; pass --job", a.cfg.IModelID)
				}
				if err != nil {
					return err
				}
				jobID = latest.JobID
			}

			extraction := client.Extraction(a.cfg.IModelID)
			if flags.wait {
				fmt.Fprintf(out, "Waiting for extraction: %s\n", jobID)
				if err := a.waitAndReport(ctx, out, extraction, runs, jobID); err != nil {
					return err
				}
				fmt.Fprintln(out, "Done.")
				return nil
			}

			status, err := extraction.Status(ctx, jobID)
			if err != nil {
				return err
			}
			a.finish(ctx, runs, jobID, status)
			fmt.Fprintf(out, "Job:    %s\n", jobID)
			fmt.Fprintf(out, "State:  %s\n", status.State)
			fmt.Fprintf(out, "Reason: %s\n", format.Dash(status.Reason))
			if status.Links.Logs != nil {
				fmt.Fprintf(out, "Logs:   %s\n", status.Links.Logs.Href)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.jobID, "job", "", "extraction job ID")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "poll until the job succeeds, fails or the timeout passes")
	cmd.Flags().Duration("timeout", 0, "with --wait, give up after this long (default from poll.timeout)")
	cmd.Flags().Duration("interval", 0, "with --wait, poll interval (default from poll.interval)")
	return cmd
}
