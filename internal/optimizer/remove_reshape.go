package optimizer

import (
	"fmt"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/tensor"
)

// ReshapePredicate decides whether a Reshape node can be dropped from g.
type ReshapePredicate func(g *graph.Graph, reshape *graph.Node) (bool, error)

// NoopReshape accepts a Reshape whose resolved target shape equals the known
// shape of its data input. The target comes from the shape operand
// initializer or a "shape" attribute; 0 copies the input dim at the same
// position and a single -1 is inferred from the element count. Unknown input
// shapes are never no-ops.
func NoopReshape(g *graph.Graph, reshape *graph.Node) (bool, error) {
	if len(reshape.Inputs) == 0 {
		return false, nil
	}
	in, ok := knownShape(g, reshape.Inputs[0])
	if !ok {
		return false, nil
	}
	target, ok, err := reshapeTarget(g, reshape)
	if err != nil || !ok {
		return false, err
	}
	resolved, err := resolveReshape(in, target)
	if err != nil {
		return false, err
	}
	return resolved.Equal(in), nil
}

// knownShape looks name up among graph inputs, graph outputs and
// initializers.
func knownShape(g *graph.Graph, name string) (tensor.Shape, bool) {
	if v, err := g.Input(name); err == nil {
		return v.Dims, true
	}
	if v, err := g.Output(name); err == nil {
		return v.Dims, true
	}
	if t, err := g.InitializerTensor(name); err == nil {
		return t.Dims, true
	}
	return nil, false
}

func reshapeTarget(g *graph.Graph, reshape *graph.Node) ([]int64, bool, error) {
	if len(reshape.Inputs) > 1 {
		t, err := g.InitializerTensor(reshape.Inputs[1])
		if err != nil {
			// Shape computed at runtime.
			return nil, false, nil
		}
		dims := make([]int64, len(t.Data))
		for i, v := range t.Data {
			dims[i] = int64(v)
		}
		return dims, true, nil
	}
	if a, ok := reshape.Attribute("shape"); ok && a.Type == graph.AttrInts {
		return a.Ints, true, nil
	}
	return nil, false, nil
}

func resolveReshape(in tensor.Shape, target []int64) (tensor.Shape, error) {
	out := make(tensor.Shape, len(target))
	infer := -1
	known := 1
	for i, d := range target {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("reshape target %v has more than one -1", target)
			}
			infer = i
			continue
		case d == 0:
			if i >= len(in) {
				return nil, fmt.Errorf("reshape target %v copies missing dim %d of %v", target, i, in)
			}
			out[i] = in[i]
		case d < 0:
			return nil, fmt.Errorf("reshape target %v has negative dim", target)
		default:
			out[i] = int(d)
		}
		known *= out[i]
	}
	if infer >= 0 {
		if known == 0 || in.NumElements()%known != 0 {
			return nil, fmt.Errorf("cannot infer -1 in %v from %v", target, in)
		}
		out[infer] = in.NumElements() / known
	}
	return out, nil
}

// RemoveReshape splices out a Reshape accepted by Predicate. Readers of the
// Reshape output are rewired to its data input. When the output is a graph
// output the data producer is renamed instead. The shape operand initializer
// is dropped once nothing else reads it.
type RemoveReshape struct {
	Target    string
	Predicate ReshapePredicate
}

// NewRemoveReshape returns a pass removing target when pred accepts it. A nil
// pred means NoopReshape.
func NewRemoveReshape(target string, pred ReshapePredicate) *RemoveReshape {
	if pred == nil {
		pred = NoopReshape
	}
	return &RemoveReshape{Target: target, Predicate: pred}
}

// Name implements Pass.
func (p *RemoveReshape) Name() string { return NameRemoveReshape }

func (p *RemoveReshape) String() string { return NameRemoveReshape + "(" + p.Target + ")" }

// Run implements Pass.
func (p *RemoveReshape) Run(g *graph.Graph) error {
	reshape, err := targetNode(g, p.Target, graph.OpReshape)
	if err != nil {
		return err
	}
	if len(reshape.Inputs) == 0 || len(reshape.Outputs) != 1 {
		return fmt.Errorf("reshape %q has %d inputs and %d outputs: %w",
			reshape.Name, len(reshape.Inputs), len(reshape.Outputs), graph.ErrInvariant)
	}
	pred := p.Predicate
	if pred == nil {
		pred = NoopReshape
	}
	ok, err := pred(g, reshape)
	if err != nil {
		return fmt.Errorf("reshape %q: %w", reshape.Name, err)
	}
	if !ok {
		return notApplicable("reshape %q is not a no-op", reshape.Name)
	}

	data, out := reshape.Inputs[0], reshape.Outputs[0]
	if g.IsGraphOutput(out) {
		if err := p.renameProducer(g, reshape, data, out); err != nil {
			return err
		}
	} else {
		if err := g.RemoveNode(reshape.Name); err != nil {
			return err
		}
		for _, name := range g.Consumers(out) {
			c, err := g.Node(name)
			if err != nil {
				return err
			}
			if err := renameInput(g, c, out, data); err != nil {
				return err
			}
		}
	}

	if len(reshape.Inputs) > 1 {
		shape := reshape.Inputs[1]
		if g.HasInitializer(shape) && len(g.Consumers(shape)) == 0 {
			if err := g.RemoveInitializerTensor(shape); err != nil {
				return err
			}
		}
	}
	return g.Validate()
}

// renameProducer keeps the graph output name stable by moving it onto the
// node that produces the Reshape's data input.
func (p *RemoveReshape) renameProducer(g *graph.Graph, reshape *graph.Node, data, out string) error {
	producers := g.Producers(data)
	if len(producers) != 1 {
		return notApplicable("reshape %q feeds graph output %q from a tensor with %d producers",
			reshape.Name, out, len(producers))
	}
	if !soleConsumer(g, data, reshape.Name) {
		return notApplicable("tensor %q feeding reshape %q has other readers", data, reshape.Name)
	}
	if err := g.RemoveNode(reshape.Name); err != nil {
		return err
	}
	prod, err := g.Node(producers[0])
	if err != nil {
		return err
	}
	return renameOutput(g, prod, data, out)
}
