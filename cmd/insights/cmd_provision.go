package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iTwin/insights-api-sample-console-app/internal/logging"
	"github.com/iTwin/insights-api-sample-console-app/internal/plan"
	"github.com/iTwin/insights-api-sample-console-app/internal/provision"
)

func newProvisionCmd(a *app) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Get or create the report, mapping, groups and properties of a plan",
		Long: "Reads a plan file (YAML or JSON) and makes sure every resource it names\n" +
			"exists in the project and iModel. Existing resources are matched by name\n" +
			"and reused, so running it twice creates nothing the second time.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireProject(); err != nil {
				return err
			}
			if err := a.cfg.RequireIModel(); err != nil {
				return err
			}
			if a.cfg.Plan.Path == "" {
				return fmt.Errorf("plan path is required (--plan or INSIGHTS_PLAN_PATH)")
			}
			pl, err := plan.LoadFromPath(a.cfg.Plan.Path)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			p := provision.New(client,
				provision.WithLogger(logging.New("provision")),
				provision.WithConcurrency(concurrency))
			res, err := p.Run(cmd.Context(), a.cfg.ProjectID, a.cfg.IModelID, pl)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range res.Entities {
				fmt.Fprintf(out, "Get or Created %s: %s - %s\n", e.Kind, e.Name, e.ID)
			}
			fmt.Fprintf(out, "%d created, %d reused.\n", res.Created(), len(res.Entities)-res.Created())
			fmt.Fprintln(out, "Done.")
			return nil
		},
	}

	cmd.Flags().String("plan", "", "plan file (YAML or JSON)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 3, "property kinds provisioned in parallel per group")
	return cmd
}
