package main

import (
	"fmt"

	"github.com/spf13/cobra"

	app "github.com/okian/elbow/internal/app"
	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/okian/elbow/pkg/logger"
)

type sweepReport struct {
	Points         []sweep.Point        `json:"points"`
	Recommendation sweep.Recommendation `json:"recommendation"`
	ModelURI       string               `json:"model_uri,omitempty"`
}

func newSweepCommand(root *rootOptions) *cobra.Command {
	var (
		rng    sweep.Range
		format string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a sweep on the configured backend",
		Long: `Run a sweep synchronously on the configured backend (local or livy),
print every trial and the recommended value, and register the refitted model
when retraining is enabled.

Range flags default to the configured sweep_start, sweep_stop and sweep_step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported format %q: must be table or json", format)
			}
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("start") {
				rng.Start = cfg.SweepStart
			}
			if !cmd.Flags().Changed("stop") {
				rng.Stop = cfg.SweepStop
			}
			if !cmd.Flags().Changed("step") {
				rng.Step = cfg.SweepStep
			}
			if err := rng.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc := app.New(append(app.FromConfig(cfg), app.WithLogger(logger.Named("sweep")))...)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			rep, err := svc.Run(ctx, rng)
			if err != nil {
				return err
			}
			out := sweepReport{Points: rep.Result.Points(), Recommendation: rep.Recommendation}
			if rep.Model != nil {
				out.ModelURI = rep.Model.URI
			}
			if format == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printCurve(cmd.OutOrStdout(), rep.Result.Params(), rep.Result.Errors(),
				rep.Recommendation.Distances, rep.Recommendation.Index)
			if out.ModelURI != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "model: %s\n", out.ModelURI)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&rng.Start, "start", 1, "First parameter value")
	cmd.Flags().IntVar(&rng.Stop, "stop", 30, "Last parameter value, inclusive")
	cmd.Flags().IntVar(&rng.Step, "step", 1, "Parameter increment")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	return cmd
}
