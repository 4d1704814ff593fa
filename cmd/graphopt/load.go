package main

import (
	"fmt"
	"io"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/serialization"
)

// loadGraph reads a graph document and, when weightsPath is set, takes
// missing initializer payloads from that SafeTensors file.
func loadGraph(graphPath, weightsPath string) (*graph.Graph, error) {
	doc, err := serialization.ReadDocument(graphPath)
	if err != nil {
		return nil, err
	}
	var weights *serialization.Weights
	if weightsPath != "" {
		if weights, err = serialization.ReadSafeTensors(weightsPath); err != nil {
			return nil, err
		}
	}
	g, err := serialization.ToGraph(doc, weights)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", graphPath, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", graphPath, err)
	}
	return g, nil
}

// saveGraph writes g as a document to out, or as JSON to stdout when out
// is empty. With weightsPath set the payloads go to a SafeTensors file and
// the document keeps only their shapes.
func saveGraph(stdout io.Writer, g *graph.Graph, out, weightsPath string) error {
	if weightsPath != "" {
		meta := map[string]string{"graph": g.Name()}
		if err := serialization.WriteSafeTensors(weightsPath, g.Initializers(), meta); err != nil {
			return err
		}
	}
	doc := serialization.FromGraph(g, weightsPath == "")
	if out == "" {
		return serialization.Encode(stdout, doc, serialization.FormatJSON)
	}
	return serialization.WriteDocument(out, doc)
}
