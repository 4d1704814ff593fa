package optimizer

import (
	"testing"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/quant"
	"github.com/born-ml/graphopt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantizeWeights(t *testing.T) {
	g := newBuilder(t, "quant").
		input("x", 1, 1, 1, 2).
		output("y", 1, 2).
		init("w", tensor.Shape{2, 1, 1, 2}, -1, 0.5, 0, 2).
		init("fc", tensor.Shape{2, 2}, 0.3, -0.7, 0, 0).
		node("conv", graph.OpConv, []string{"x", "w"}, []string{"c"}).
		node("gemm", graph.OpGemm, []string{"c", "fc"}, []string{"y"}).
		build()

	p := NewQuantizeWeights(quant.DefaultParams())
	require.NoError(t, p.Run(g))
	assert.Equal(t, []string{"w", "fc"}, p.Quantized)

	conv, err := g.Node("conv")
	require.NoError(t, err)
	assert.Equal(t, int64(0), graph.GetAttrInt(conv, graph.AttrQuantMin, -1))
	assert.Equal(t, int64(255), graph.GetAttrInt(conv, graph.AttrQuantMax, -1))
	scales, ok := conv.Attribute(graph.AttrWeightsScale)
	require.True(t, ok)
	require.Len(t, scales.Floats, 2)
	assert.InDelta(t, 1.5/255, scales.Floats[0], 1e-6)
	assert.InDelta(t, 2.0/255, scales.Floats[1], 1e-6)

	w, err := g.InitializerTensor("w")
	require.NoError(t, err)
	want := make([]float32, 4)
	require.NoError(t, quant.FakeQuant([]float32{-1, 0.5}, want[:2], -1, 0.5, quant.DefaultParams()))
	require.NoError(t, quant.FakeQuant([]float32{0, 2}, want[2:], 0, 2, quant.DefaultParams()))
	assert.Equal(t, want, w.Data)

	// Gemm weights are [K, N]: column 1 holds -0.7 and 0.
	gemm, err := g.Node("gemm")
	require.NoError(t, err)
	gs, ok := gemm.Attribute(graph.AttrWeightsScale)
	require.True(t, ok)
	assert.InDelta(t, 0.3/255, gs.Floats[0], 1e-6)
	assert.InDelta(t, 0.7/255, gs.Floats[1], 1e-6)
}

func TestQuantizeWeights_NothingToDo(t *testing.T) {
	g := newBuilder(t, "empty").
		input("x", 1, 4).
		output("y", 1, 4).
		node("relu", graph.OpRelu, []string{"x"}, []string{"y"}).
		build()
	assert.ErrorIs(t, NewQuantizeWeights(quant.DefaultParams()).Run(g), ErrNotApplicable)
}
