package optimizer

import (
	"fmt"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/quant"
	"github.com/born-ml/graphopt/internal/tensor"
)

// QuantizeWeights fake-quantizes the float32 weight initializer of every
// Conv, DepthwiseConv and Gemm node per output channel and records the code
// range and per-channel scales on the node. Weights shared by several nodes
// are quantized once.
type QuantizeWeights struct {
	Params quant.Params

	// Quantized lists the weight initializers rewritten by the last Run.
	Quantized []string
}

// NewQuantizeWeights returns a weight quantization pass. The tensor type of
// params is forced to quant.Weight.
func NewQuantizeWeights(params quant.Params) *QuantizeWeights {
	params.TensorType = quant.Weight
	return &QuantizeWeights{Params: params}
}

// Name implements Pass.
func (p *QuantizeWeights) Name() string { return NameQuantizeWeights }

func (p *QuantizeWeights) String() string {
	return fmt.Sprintf("%s(%d..%d)", NameQuantizeWeights, p.Params.QuantMin, p.Params.QuantMax)
}

// Run implements Pass.
func (p *QuantizeWeights) Run(g *graph.Graph) error {
	p.Quantized = p.Quantized[:0]
	done := make(map[string][]float32)

	for _, n := range g.Nodes() {
		axis, ok := weightChannelAxis(n)
		if !ok || len(n.Inputs) < 2 {
			continue
		}
		name := n.Inputs[1]
		scales, seen := done[name]
		if !seen {
			w, err := g.InitializerTensor(name)
			if err != nil || w.Type != tensor.Float32 || len(w.Dims) <= axis {
				continue
			}
			scales, err = p.quantize(g, w, axis)
			if err != nil {
				return fmt.Errorf("node %q weight %q: %w", n.Name, name, err)
			}
			done[name] = scales
			p.Quantized = append(p.Quantized, name)
		}

		attrs := map[string]graph.Attribute{
			graph.AttrQuantMin:     graph.Int(int64(p.Params.QuantMin)),
			graph.AttrQuantMax:     graph.Int(int64(p.Params.QuantMax)),
			graph.AttrWeightsScale: graph.Floats(scales...),
		}
		for _, k := range []string{graph.AttrQuantMin, graph.AttrQuantMax, graph.AttrWeightsScale} {
			if err := g.UpdateNodeAttribute(n.Name, k, attrs[k]); err != nil {
				return err
			}
		}
	}

	if len(p.Quantized) == 0 {
		return notApplicable("no float32 weights to quantize")
	}
	return nil
}

// quantize rewrites w in the graph and returns its per-channel scales.
// Channels that are all zero keep scale 0.
func (p *QuantizeWeights) quantize(g *graph.Graph, w *graph.Tensor, axis int) ([]float32, error) {
	mins, maxs, err := quant.ChannelRanges(w.Data, w.Dims, axis)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(w.Data))
	if err := quant.PerChannelAxis(w.Data, out, w.Dims, axis, mins, maxs, p.Params); err != nil {
		return nil, err
	}
	scales := make([]float32, len(mins))
	for c := range mins {
		if mins[c] == 0 && maxs[c] == 0 {
			continue
		}
		n, err := quant.Nudge(mins[c], maxs[c], p.Params)
		if err != nil {
			return nil, err
		}
		scales[c] = n.Scale
	}
	if err := g.UpdateInitializerTensor(w.Name, w.Dims, out); err != nil {
		return nil, err
	}
	return scales, nil
}

// weightChannelAxis returns the output-channel axis of a node's weight
// operand. Convolution weights lead with the output channel in both OIHW and
// OHWI; Gemm weights are [K, N] unless transB is set.
func weightChannelAxis(n *graph.Node) (int, bool) {
	switch n.OpType {
	case graph.OpConv, graph.OpDepthwiseConv:
		return 0, true
	case graph.OpGemm:
		if graph.GetAttrInt(n, "transB", 0) != 0 {
			return 0, true
		}
		return 1, true
	default:
		return 0, false
	}
}
