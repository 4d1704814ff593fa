package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/born-ml/graphopt/internal/optimizer"
)

func newOptimizeCmd() *cobra.Command {
	var (
		graphPath   string
		weightsPath string
		outPath     string
		outWeights  string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run the configured passes over a graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			opts, err := cfg.OptimizerOptions()
			if err != nil {
				return err
			}

			g, err := loadGraph(graphPath, weightsPath)
			if err != nil {
				return err
			}
			passes, err := optimizer.NewRegistry().Build(g, cfg.Optimizer.Passes, opts)
			if err != nil {
				return err
			}

			m := optimizer.NewManager(
				optimizer.WithLogger(activeLog.With("graph", g.Name())),
				optimizer.WithValidation(cfg.Optimizer.Validate),
			)
			m.Add(passes...)
			results, err := m.Run(cmd.Context(), g)
			printResults(cmd, results)
			if err != nil {
				return err
			}

			return saveGraph(cmd.OutOrStdout(), g, outPath, outWeights)
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "Graph document (.json|.yaml)")
	cmd.Flags().StringVar(&weightsPath, "weights", "", "SafeTensors file with initializer payloads")
	cmd.Flags().StringVar(&outPath, "out", "", "Output document (default: JSON on stdout)")
	cmd.Flags().StringVar(&outWeights, "out-weights", "", "Write initializers to this SafeTensors file")
	_ = cmd.MarkFlagRequired("graph")

	return cmd
}

// printResults writes a pass table to stderr.
func printResults(cmd *cobra.Command, results []optimizer.PassResult) {
	tw := tabwriter.NewWriter(cmd.ErrOrStderr(), 0, 4, 2, ' ', 0)
	for _, r := range results {
		status := "ok"
		if r.Skipped {
			status = "skipped"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d -> %d\t%s\n",
			r.Detail, status, r.NodesBefore, r.NodesAfter, r.Duration.Round(time.Microsecond))
	}
	_ = tw.Flush()
}
