package optimizer

import (
	"fmt"

	"github.com/born-ml/graphopt/internal/graph"
)

// FuseRelu folds a standalone Relu into the node that produces its input.
// Producers take over the Relu's output name; convolution producers are
// additionally marked with the fused relu activation. The Relu node is then
// removed. Consumers of the Relu output keep reading the same tensor name.
type FuseRelu struct {
	Target string

	// Fused lists the producers that absorbed the Relu after a successful Run.
	Fused []string
}

// NewFuseRelu returns a pass fusing the Relu node named target.
func NewFuseRelu(target string) *FuseRelu {
	return &FuseRelu{Target: target}
}

// Name implements Pass.
func (p *FuseRelu) Name() string { return NameFuseRelu }

func (p *FuseRelu) String() string { return NameFuseRelu + "(" + p.Target + ")" }

// Run implements Pass.
func (p *FuseRelu) Run(g *graph.Graph) error {
	relu, err := targetNode(g, p.Target, graph.OpRelu)
	if err != nil {
		return err
	}
	if len(relu.Inputs) != 1 || len(relu.Outputs) != 1 {
		return fmt.Errorf("relu %q has %d inputs and %d outputs, want 1 and 1: %w",
			relu.Name, len(relu.Inputs), len(relu.Outputs), graph.ErrInvariant)
	}
	in, out := relu.Inputs[0], relu.Outputs[0]

	producers := g.Producers(in)
	if len(producers) == 0 {
		return fmt.Errorf("producer of relu %q input: %w", relu.Name, &graph.NotFoundError{Kind: "producer", Name: in})
	}
	if !soleConsumer(g, in, relu.Name) {
		return notApplicable("tensor %q feeding relu %q has other readers", in, relu.Name)
	}

	if err := g.RemoveNode(relu.Name); err != nil {
		return err
	}
	for _, name := range producers {
		prod, err := g.Node(name)
		if err != nil {
			return err
		}
		if err := renameOutput(g, prod, in, out); err != nil {
			return err
		}
		if prod.IsConv() {
			if err := g.UpdateNodeAttribute(name, graph.AttrActivation, graph.Int(graph.ActivationRelu)); err != nil {
				return err
			}
		}
	}
	p.Fused = producers
	return g.Validate()
}
