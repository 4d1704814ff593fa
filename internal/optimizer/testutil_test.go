package optimizer

import (
	"testing"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/tensor"
	"github.com/stretchr/testify/require"
)

// graphBuilder trims the error plumbing out of test graph construction.
type graphBuilder struct {
	t *testing.T
	g *graph.Graph
}

func newBuilder(t *testing.T, name string) *graphBuilder {
	t.Helper()
	return &graphBuilder{t: t, g: graph.New(name)}
}

func (b *graphBuilder) input(name string, dims ...int) *graphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.AddInput(&graph.ValueInfo{Name: name, Dims: dims, Type: tensor.Float32}))
	return b
}

func (b *graphBuilder) output(name string, dims ...int) *graphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.AddOutput(&graph.ValueInfo{Name: name, Dims: dims, Type: tensor.Float32}))
	return b
}

func (b *graphBuilder) init(name string, dims tensor.Shape, data ...float32) *graphBuilder {
	b.t.Helper()
	w, err := graph.NewTensor(name, dims, tensor.Float32, data)
	require.NoError(b.t, err)
	require.NoError(b.t, b.g.AddInitializer(w))
	return b
}

func (b *graphBuilder) node(name, op string, inputs, outputs []string, attrs ...any) *graphBuilder {
	b.t.Helper()
	n := graph.NewNode(name, op, inputs, outputs)
	for i := 0; i+1 < len(attrs); i += 2 {
		n.SetAttribute(attrs[i].(string), attrs[i+1].(graph.Attribute))
	}
	require.NoError(b.t, b.g.AddNode(n))
	return b
}

func (b *graphBuilder) build() *graph.Graph {
	b.t.Helper()
	require.NoError(b.t, b.g.Validate())
	return b.g
}

// convReluGraph is x -> conv(w) -> conv_out -> relu -> relu_out -> gemm(fc) -> y.
func convReluGraph(t *testing.T) *graph.Graph {
	return newBuilder(t, "conv_relu").
		input("x", 1, 3, 4, 4).
		output("y", 1, 2).
		init("w", tensor.Shape{2, 3, 1, 1}, 1, 2, 3, 4, 5, 6).
		init("fc", tensor.Shape{2, 2}, 1, 0, 0, 1).
		node("conv", graph.OpConv, []string{"x", "w"}, []string{"conv_out"}).
		node("relu", graph.OpRelu, []string{"conv_out"}, []string{"relu_out"}).
		node("gemm", graph.OpGemm, []string{"relu_out", "fc"}, []string{"y"}).
		build()
}

func nodeNames(g *graph.Graph) []string {
	var names []string
	for _, n := range g.Nodes() {
		names = append(names, n.Name)
	}
	return names
}
