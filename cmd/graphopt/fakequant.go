package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/graphopt/internal/quant"
)

func newFakeQuantCmd() *cobra.Command {
	var (
		minVal, maxVal float32
		values         []float32
		gradients      []float32
	)

	cmd := &cobra.Command{
		Use:   "fakequant",
		Short: "Fake-quantize a list of values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			p, err := cfg.Quant.QuantParams()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if minVal != 0 || maxVal != 0 {
				n, err := quant.Nudge(minVal, maxVal, p)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(w, "nudged: min=%g max=%g scale=%g zero_point=%d\n", n.Min, n.Max, n.Scale, n.ZeroPoint)
			}

			out := make([]float32, len(values))
			scales, err := quant.FakeQuantVars(values, out, minVal, maxVal, p)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "output: %v\n", out)
			if p.EVQuant {
				_, _ = fmt.Fprintf(w, "scales: weights=%g inputs=%g\n", scales.Weights, scales.Inputs)
			}

			if len(gradients) == 0 {
				return nil
			}
			backprops := make([]float32, len(gradients))
			gMin, gMax, err := quant.GradientVars(gradients, values, backprops, minVal, maxVal, p)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "backprops: %v\n", backprops)
			_, _ = fmt.Fprintf(w, "grad_min=%g grad_max=%g\n", gMin, gMax)
			return nil
		},
	}

	cmd.Flags().Float32Var(&minVal, "min", 0, "Range minimum (<= 0)")
	cmd.Flags().Float32Var(&maxVal, "max", 0, "Range maximum (>= 0)")
	cmd.Flags().Float32SliceVar(&values, "values", nil, "Values to quantize")
	cmd.Flags().Float32SliceVar(&gradients, "gradients", nil, "Incoming gradients; also runs the backward pass")

	return cmd
}
