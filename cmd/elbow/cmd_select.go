package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/elbow/internal/domain/elbow"
	"github.com/okian/elbow/internal/domain/types"
)

func newSelectCommand() *cobra.Command {
	var (
		params []int
		errs   []float64
		format string
	)
	cmd := &cobra.Command{
		Use:   "select --params 1,2,3 --errors 10,8,3",
		Short: "Select the elbow of an explicit sweep",
		Long: `Select the elbow of an already measured sweep.

Parameters must be strictly increasing and paired one to one with their
validation errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported format %q: must be table or json", format)
			}
			a, err := elbow.Analyze(params, errs)
			if err != nil {
				return err
			}
			res := types.ElbowResponse{
				Param:     a.Param,
				Index:     a.Index,
				Slope:     a.Slope,
				Intercept: a.Intercept,
				Distances: a.Distances,
			}
			if format == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printCurve(cmd.OutOrStdout(), params, errs, a.Distances, a.Index)
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&params, "params", nil, "Swept parameter values, comma separated")
	cmd.Flags().Float64SliceVar(&errs, "errors", nil, "Validation error per parameter, comma separated")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	_ = cmd.MarkFlagRequired("params")
	_ = cmd.MarkFlagRequired("errors")
	return cmd
}

// printCurve writes one row per point and marks the selected one.
func printCurve(w io.Writer, params []int, errs, distances []float64, selected int) {
	fmt.Fprintf(w, "%8s  %12s  %12s\n", "PARAM", "ERROR", "DISTANCE")
	for i, p := range params {
		mark := ""
		if i == selected {
			mark = "  <- elbow"
		}
		fmt.Fprintf(w, "%8d  %12.6g  %12.6g%s\n", p, errs[i], distances[i], mark)
	}
	fmt.Fprintf(w, "\nrecommended: %d\n", params[selected])
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
