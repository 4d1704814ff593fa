package optimizer

import (
	"fmt"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/tensor"
)

// rankPreserving ops produce a 4-D activation from a 4-D first input.
var rankPreserving = map[string]bool{
	graph.OpConv:          true,
	graph.OpDepthwiseConv: true,
	graph.OpRelu:          true,
	graph.OpAdd:           true,
	graph.OpConcat:        true,
	graph.OpSoftmax:       true,
	graph.OpMaxPool:       true,
	graph.OpAveragePool:   true,
	graph.OpFakeQuant:     true,
}

// axisOps carry an axis attribute that indexes their 4-D input.
var axisOps = map[string]bool{
	graph.OpConcat:  true,
	graph.OpSoftmax: true,
}

// splitOps carry an axis attribute that splits their 4-D input into leading
// and trailing dims rather than naming one of them.
var splitOps = map[string]bool{
	graph.OpFlatten: true,
}

// ConvertLayout converts a whole graph between NCHW and NHWC. It permutes
// the dims of 4-D graph inputs and outputs and their runtime buffers, the
// weights of convolutions (OIHW for NCHW, OHWI for NHWC), remaps the axis
// attribute of Concat, Softmax and Flatten nodes reading 4-D activations and
// stamps data_layout on every node that reads one.
type ConvertLayout struct {
	From, To tensor.Layout
}

// NewConvertLayout returns a pass converting from one layout to another.
func NewConvertLayout(from, to tensor.Layout) *ConvertLayout {
	return &ConvertLayout{From: from, To: to}
}

// Name implements Pass.
func (p *ConvertLayout) Name() string { return NameConvertLayout }

func (p *ConvertLayout) String() string {
	return fmt.Sprintf("%s(%s->%s)", NameConvertLayout, p.From, p.To)
}

// Run implements Pass.
func (p *ConvertLayout) Run(g *graph.Graph) error {
	if p.From == p.To {
		return notApplicable("graph is already %s", p.To)
	}
	perm := tensor.LayoutPermutation(p.From, p.To)

	// Activation ranks must be inferred before any dims change.
	spatial := spatialTensors(g)
	for _, n := range g.Nodes() {
		if splitOps[n.OpType] && len(n.Inputs) > 0 && spatial[n.Inputs[0]] {
			if err := checkSplitAxis(n); err != nil {
				return err
			}
		}
	}

	for _, v := range g.Inputs() {
		if len(v.Dims) != 4 {
			continue
		}
		dims, err := v.Dims.Permute(perm)
		if err != nil {
			return err
		}
		if err := g.UpdateInputs(v.Name, dims); err != nil {
			return err
		}
	}
	for _, v := range g.Outputs() {
		if len(v.Dims) != 4 {
			continue
		}
		dims, err := v.Dims.Permute(perm)
		if err != nil {
			return err
		}
		if err := g.UpdateOutputs(v.Name, dims); err != nil {
			return err
		}
	}
	for _, t := range g.InputTensors() {
		if err := permuteTensor(t, perm); err != nil {
			return err
		}
		if err := g.ReplaceInputTensor(t); err != nil {
			return err
		}
	}
	for _, t := range g.OutputTensors() {
		if err := permuteTensor(t, perm); err != nil {
			return err
		}
		if err := g.ReplaceOutputTensor(t); err != nil {
			return err
		}
	}

	permuted := make(map[string]bool)
	for _, n := range g.Nodes() {
		if n.IsConv() && len(n.Inputs) > 1 && !permuted[n.Inputs[1]] {
			if err := p.permuteWeights(g, n.Inputs[1], perm); err != nil {
				return fmt.Errorf("node %q: %w", n.Name, err)
			}
			permuted[n.Inputs[1]] = true
		}
		if len(n.Inputs) == 0 || !spatial[n.Inputs[0]] {
			continue
		}
		if axisOps[n.OpType] {
			if err := p.remapAxis(g, n); err != nil {
				return err
			}
		}
		if err := g.UpdateNodeAttribute(n.Name, graph.AttrDataLayout, graph.String(p.To.String())); err != nil {
			return err
		}
	}
	return nil
}

func (p *ConvertLayout) permuteWeights(g *graph.Graph, name string, perm []int) error {
	w, err := g.InitializerTensor(name)
	if err != nil {
		// Weights fed at runtime are converted by whoever feeds them.
		return nil
	}
	if len(w.Dims) != 4 {
		return nil
	}
	if err := permuteTensor(w, perm); err != nil {
		return err
	}
	return g.UpdateInitializerTensor(name, w.Dims, w.Data)
}

func (p *ConvertLayout) remapAxis(g *graph.Graph, n *graph.Node) error {
	// ONNX defaults: Concat has no default, Softmax uses 1.
	attr, ok := n.Attribute(graph.AttrAxis)
	if !ok && n.OpType == graph.OpConcat {
		return nil
	}
	axis := int64(1)
	if ok {
		axis = attr.I
	}
	mapped, err := tensor.MapAxis(int(axis), p.From, p.To)
	if err != nil {
		return fmt.Errorf("node %q: %w", n.Name, err)
	}
	return g.UpdateNodeAttribute(n.Name, graph.AttrAxis, graph.Int(int64(mapped)))
}

// checkSplitAxis rejects a split axis that falls between dims whose order
// differs across layouts. Only the batch dim stays in place.
func checkSplitAxis(n *graph.Node) error {
	axis := graph.GetAttrInt(n, graph.AttrAxis, 1)
	if axis < 0 {
		axis += 4
	}
	switch axis {
	case 0, 1, 4:
		return nil
	}
	return fmt.Errorf("node %q: %s axis %d depends on the layout: %w",
		n.Name, n.OpType, graph.GetAttrInt(n, graph.AttrAxis, 1), graph.ErrInvariant)
}

// permuteTensor permutes a 4-D tensor in place. Other ranks are left alone.
func permuteTensor(t *graph.Tensor, perm []int) error {
	if len(t.Dims) != 4 {
		return nil
	}
	dims, err := t.Dims.Permute(perm)
	if err != nil {
		return err
	}
	if len(t.Data) > 0 {
		data, err := tensor.PermuteData(t.Data, t.Dims, perm)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", t.Name, err)
		}
		t.Data = data
	}
	t.Dims = dims
	return nil
}

// spatialTensors returns the names of tensors known to be 4-D activations:
// 4-D graph inputs and outputs of rank-preserving nodes fed by one.
func spatialTensors(g *graph.Graph) map[string]bool {
	spatial := make(map[string]bool)
	for _, v := range g.Inputs() {
		if len(v.Dims) == 4 {
			spatial[v.Name] = true
		}
	}
	for _, name := range g.TopologicalOrder() {
		n, err := g.Node(name)
		if err != nil || len(n.Inputs) == 0 {
			continue
		}
		if rankPreserving[n.OpType] && spatial[n.Inputs[0]] {
			for _, out := range n.Outputs {
				spatial[out] = true
			}
		}
	}
	return spatial
}
