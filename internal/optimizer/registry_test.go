package optimizer

import (
	"context"
	"testing"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{NameConvertLayout, NameFuseRelu, NameQuantizeWeights, NameRemoveReshape}, r.Names())

	_, ok := r.Get(NameFuseRelu)
	assert.True(t, ok)
	_, ok = r.Get("bogus")
	assert.False(t, ok)
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	g := convReluGraph(t)

	passes, err := r.Build(g, []string{NameFuseRelu, NameConvertLayout, NameQuantizeWeights}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, passes, 2, "convert_layout expands to nothing for NCHW->NCHW")
	require.IsType(t, &FuseRelu{}, passes[0])
	assert.Equal(t, "relu", passes[0].(*FuseRelu).Target)
	assert.IsType(t, &QuantizeWeights{}, passes[1])

	opts := DefaultOptions()
	opts.LayoutTo = tensor.NHWC
	passes, err = r.Build(g, []string{NameConvertLayout}, opts)
	require.NoError(t, err)
	require.Len(t, passes, 1)

	_, err = r.Build(g, []string{"bogus"}, DefaultOptions())
	assert.ErrorContains(t, err, "unknown pass")
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", func(*graph.Graph, Options) ([]Pass, error) {
		return []Pass{funcPass{name: "noop", run: func(*graph.Graph) error { return nil }}}, nil
	})
	assert.Contains(t, r.Names(), "noop")

	passes, err := r.Build(graph.New("empty"), []string{"noop"}, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, passes, 1)
}

func TestPipeline(t *testing.T) {
	g := newBuilder(t, "pipeline").
		input("x", 1, 3, 2, 2).
		output("y", 1, 2).
		init("w", tensor.Shape{2, 3, 1, 1}, 1, -2, 3, -4, 5, -6).
		init("shape", tensor.Shape{2}, 1, 8).
		init("fc", tensor.Shape{8, 2}, 1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0, 1).
		node("conv", graph.OpConv, []string{"x", "w"}, []string{"c"}).
		node("relu", graph.OpRelu, []string{"c"}, []string{"r"}).
		node("flatten", graph.OpFlatten, []string{"r"}, []string{"f"}).
		node("reshape", graph.OpReshape, []string{"f", "shape"}, []string{"f2"}).
		node("gemm", graph.OpGemm, []string{"f2", "fc"}, []string{"y"}).
		build()

	// The reshape input has no recorded shape, so the default predicate
	// keeps it; a permissive predicate drops it.
	opts := DefaultOptions()
	opts.Reshape = func(*graph.Graph, *graph.Node) (bool, error) { return true, nil }

	passes, err := NewRegistry().Build(g, []string{NameRemoveReshape, NameFuseRelu, NameQuantizeWeights}, opts)
	require.NoError(t, err)

	m := NewManager()
	m.Add(passes...)
	results, err := m.Run(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"conv", "flatten", "gemm"}, nodeNames(g))
	assert.False(t, g.HasInitializer("shape"))

	conv, err := g.Node("conv")
	require.NoError(t, err)
	assert.Equal(t, graph.ActivationRelu, graph.GetAttrInt(conv, graph.AttrActivation, 0))
	assert.Equal(t, []string{"r"}, conv.Outputs)
	_, ok := conv.Attribute(graph.AttrWeightsScale)
	assert.True(t, ok)
}

func TestBuild_ExpandsAgainstCurrentGraph(t *testing.T) {
	g := newBuilder(t, "staged").
		input("x", 1, 1, 2, 2).
		output("y", 1, 1, 2, 2).
		init("w", tensor.Shape{1, 1, 1, 1}, 2).
		init("shape", tensor.Shape{4}, 1, 1, 2, 2).
		node("conv", graph.OpConv, []string{"x", "w"}, []string{"c"}).
		node("reshape", graph.OpReshape, []string{"c", "shape"}, []string{"r"}).
		node("relu", graph.OpRelu, []string{"r"}, []string{"y"}).
		build()
	opts := DefaultOptions()
	opts.Reshape = func(*graph.Graph, *graph.Node) (bool, error) { return true, nil }
	pipeline := []string{NameRemoveReshape, NameFuseRelu}

	run := func() {
		t.Helper()
		passes, err := NewRegistry().Build(g, pipeline, opts)
		require.NoError(t, err)
		m := NewManager()
		m.Add(passes...)
		_, err = m.Run(context.Background(), g)
		require.NoError(t, err)
	}

	run()
	assert.Equal(t, []string{"conv", "relu"}, nodeNames(g), "relu was behind the reshape at build time")

	run()
	assert.Equal(t, []string{"conv"}, nodeNames(g))
}
