// Package optimizer rewrites graphs in place. A Pass performs one rewrite,
// the Manager runs an ordered list of passes and the Registry turns pipeline
// entry names into concrete passes for a given graph.
package optimizer

import (
	"errors"
	"fmt"

	"github.com/born-ml/graphopt/internal/graph"
)

// ErrNotApplicable is returned by a pass whose preconditions do not hold for
// the graph it was given. The graph is untouched and the Manager moves on.
var ErrNotApplicable = errors.New("pass not applicable")

// Pass is one in-place graph rewrite. The graph is lent for the duration of
// Run only; a pass keeps no reference to it afterwards.
type Pass interface {
	Name() string
	Run(g *graph.Graph) error
}

// Pass names, also used as registry keys.
const (
	NameFuseRelu        = "fuse_relu"
	NameRemoveReshape   = "remove_reshape"
	NameConvertLayout   = "convert_layout"
	NameQuantizeWeights = "quantize_weights"
)

func notApplicable(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotApplicable)...)
}

// targetNode fetches the pass target and checks its op type.
func targetNode(g *graph.Graph, name, opType string) (*graph.Node, error) {
	n, err := g.Node(name)
	if err != nil {
		return nil, err
	}
	if n.OpType != opType {
		return nil, fmt.Errorf("node %q is %s, want %s: %w", name, n.OpType, opType, graph.ErrInvariant)
	}
	return n, nil
}

// renameOutput rewrites every output slot of node that holds from.
func renameOutput(g *graph.Graph, node *graph.Node, from, to string) error {
	for i, out := range node.Outputs {
		if out != from {
			continue
		}
		if err := g.UpdateNodeOutputs(node.Name, to, i); err != nil {
			return err
		}
	}
	return nil
}

// renameInput rewrites every input slot of node that holds from.
func renameInput(g *graph.Graph, node *graph.Node, from, to string) error {
	for i, in := range node.Inputs {
		if in != from {
			continue
		}
		if err := g.UpdateNodeInputs(node.Name, to, i); err != nil {
			return err
		}
	}
	return nil
}

// soleConsumer reports whether tensor is read only by node and is not a
// graph output, so its producer may be renamed freely.
func soleConsumer(g *graph.Graph, tensor, node string) bool {
	if g.IsGraphOutput(tensor) {
		return false
	}
	for _, c := range g.Consumers(tensor) {
		if c != node {
			return false
		}
	}
	return true
}
