package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iTwin/insights-api-sample-console-app/internal/logging"
	"github.com/iTwin/insights-api-sample-console-app/internal/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Insights MCP server over stdio",
		Long: "Serves the Insights tools (list reports and mappings, provision a plan,\n" +
			"run and follow extractions) over the Model Context Protocol on stdio.\n" +
			"Logs go to stderr; stdout carries the protocol.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			runs, err := a.openRuns()
			if err != nil {
				return err
			}
			defer runs.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			logger := logging.New("mcp")
			mcp.WatchParent(ctx, cancel, logger)

			srv := mcp.NewServer(client, runs,
				mcp.WithLogger(logger),
				mcp.WithPollInterval(a.cfg.Poll.Interval),
				mcp.WithWaitTimeout(a.cfg.Poll.Timeout))
			logger.Info("serving over stdio")
			return srv.Run(ctx)
		},
	}
}
