package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var graphPath, weightsPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a graph summary and its node order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := loadGraph(graphPath, weightsPath)
			if err != nil {
				return err
			}
			s := g.Summary()
			w := cmd.OutOrStdout()

			_, _ = fmt.Fprintf(w, "graph %s\n", g.Name())
			_, _ = fmt.Fprintf(w, "  nodes: %d, initializers: %d, inputs: %d, outputs: %d\n",
				s.Nodes, s.Initializers, s.Inputs, s.Outputs)
			for _, op := range slices.Sorted(maps.Keys(s.OpCounts)) {
				_, _ = fmt.Fprintf(w, "  %-16s %d\n", op, s.OpCounts[op])
			}
			for _, v := range g.Inputs() {
				_, _ = fmt.Fprintf(w, "  input  %s %v %s\n", v.Name, v.Dims, v.Type)
			}
			for _, v := range g.Outputs() {
				_, _ = fmt.Fprintf(w, "  output %s %v %s\n", v.Name, v.Dims, v.Type)
			}
			_, _ = fmt.Fprintf(w, "order: %s\n", strings.Join(g.TopologicalOrder(), " -> "))
			return nil
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "Graph document (.json|.yaml)")
	cmd.Flags().StringVar(&weightsPath, "weights", "", "SafeTensors file with initializer payloads")
	_ = cmd.MarkFlagRequired("graph")

	return cmd
}
