package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iTwin/insights-api-sample-console-app/internal/format"
)

func newReportsCmd(a *app) *cobra.Command {
	var flags struct {
		all    bool
		output string
	}

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List the reports of the project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireProject(); err != nil {
				return err
			}
			mode, err := format.ParseMode(flags.output)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			reports, err := client.Reports().List(cmd.Context(), a.cfg.ProjectID)
			if err != nil {
				return err
			}

			tb := format.NewTable(mode)
			tb.Header("ID", "Name", "Description")
			tb.Columns(format.ColumnConfig{Number: 3, MaxWidth: 60})
			for _, r := range reports {
				if r.Deleted && !flags.all {
					continue
				}
				name := r.DisplayName
				if r.Deleted {
					name += " (deleted)"
				}
				tb.Row(r.ID, name, format.Dash(r.Description))
			}
			out := cmd.OutOrStdout()
			if tb.Len() == 0 {
				fmt.Fprintf(out, "No reports in project %s.\n", a.cfg.ProjectID)
				return nil
			}
			tb.Footer("", "Total", tb.Len())
			fmt.Fprintln(out, tb.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.all, "all", false, "include reports marked deleted")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "table", "output format: table or markdown")
	return cmd
}

func newMappingsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "List the mappings of the iModel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireIModel(); err != nil {
				return err
			}
			mode, err := format.ParseMode(output)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			mappings, err := client.Mappings(a.cfg.IModelID).List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(mappings) == 0 {
				fmt.Fprintf(out, "No mappings in iModel %s.\n", a.cfg.IModelID)
				return nil
			}
			tb := format.NewTable(mode)
			tb.Header("ID", "Name", "Extraction")
			for _, m := range mappings {
				extraction := "disabled"
				if m.ExtractionEnabled {
					extraction = "enabled"
				}
				tb.Row(m.ID, m.MappingName, extraction)
			}
			fmt.Fprintln(out, tb.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or markdown")
	return cmd
}
