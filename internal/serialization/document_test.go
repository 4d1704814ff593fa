package serialization

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("sample")
	g.SetInputName("x")
	g.SetOutputName("y")
	require.NoError(t, g.AddInput(&graph.ValueInfo{Name: "x", Dims: tensor.Shape{1, 2, 2, 2}, Type: tensor.Float32}))
	require.NoError(t, g.AddOutput(&graph.ValueInfo{Name: "y", Dims: tensor.Shape{1, 1, 2, 2}, Type: tensor.Float32}))
	w, err := graph.NewTensor("w", tensor.Shape{1, 2, 1, 1}, tensor.Float32, []float32{0.5, -1.25})
	require.NoError(t, err)
	require.NoError(t, g.AddInitializer(w))

	conv := graph.NewNode("conv", graph.OpConv, []string{"x", "w"}, []string{"c"})
	conv.SetAttribute("strides", graph.Ints(1, 1))
	conv.SetAttribute("pads", graph.Ints())
	conv.SetAttribute(graph.AttrActivation, graph.Int(graph.ActivationNone))
	conv.SetAttribute("alpha", graph.Float(0.25))
	conv.SetAttribute(graph.AttrDataLayout, graph.String("NCHW"))
	conv.SetAttribute(graph.AttrWeightsScale, graph.Floats(0.1, 0.2))
	require.NoError(t, g.AddNode(conv))
	require.NoError(t, g.AddNode(graph.NewNode("relu", graph.OpRelu, []string{"c"}, []string{"y"})))
	return g
}

func assertSameGraph(t *testing.T, want, got *graph.Graph) {
	t.Helper()
	assert.Equal(t, want.Name(), got.Name())
	assert.Equal(t, want.InputName(), got.InputName())
	assert.Equal(t, want.OutputName(), got.OutputName())
	assert.Equal(t, want.Nodes(), got.Nodes())
	assert.Equal(t, want.Initializers(), got.Initializers())
	assert.Equal(t, want.Inputs(), got.Inputs())
	assert.Equal(t, want.Outputs(), got.Outputs())
}

func TestDocumentRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(f), func(t *testing.T) {
			g := sampleGraph(t)

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, FromGraph(g, true), f))

			doc, err := Decode(&buf, f)
			require.NoError(t, err)
			got, err := ToGraph(doc, nil)
			require.NoError(t, err)
			assertSameGraph(t, g, got)
		})
	}
}

func TestDecode_YAML(t *testing.T) {
	src := `
name: tiny
nodes:
  - op_type: Relu
    inputs: [x]
    outputs: [y]
  - name: soft
    op_type: Softmax
    inputs: [y]
    outputs: [z]
    attributes:
      axis: {int: 1}
inputs:
  - {name: x, dims: [1, 4], type: F32}
outputs:
  - {name: z, dims: [1, 4], type: float32}
`
	doc, err := Decode(strings.NewReader(src), FormatYAML)
	require.NoError(t, err)
	g, err := ToGraph(doc, nil)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	nodes := g.Nodes()
	require.Len(t, nodes, 2)
	assert.True(t, strings.HasPrefix(nodes[0].Name, "relu_"), nodes[0].Name)
	assert.Len(t, nodes[0].Name, len("relu_")+36)
	assert.Equal(t, int64(1), graph.GetAttrInt(nodes[1], graph.AttrAxis, 0))
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"name": "x", "bogus": 1}`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`{}`), Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	tests := map[string]string{
		"no op type":     `{"name": "g", "nodes": [{"name": "a", "inputs": [], "outputs": ["y"]}]}`,
		"two values":     `{"name": "g", "nodes": [{"name": "a", "op_type": "Relu", "inputs": [], "outputs": ["y"], "attributes": {"k": {"int": 1, "float": 2}}}]}`,
		"no value":       `{"name": "g", "nodes": [{"name": "a", "op_type": "Relu", "inputs": [], "outputs": ["y"], "attributes": {"k": {}}}]}`,
		"missing weight": `{"name": "g", "nodes": [], "initializers": [{"name": "w", "dims": [2], "type": "float32"}]}`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			doc, err := Decode(strings.NewReader(src), FormatJSON)
			require.NoError(t, err)
			_, err = ToGraph(doc, nil)
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestToGraph_ExternalWeights(t *testing.T) {
	g := sampleGraph(t)
	doc := FromGraph(g, false)
	assert.Empty(t, doc.Initializers[0].Data)

	w := &Weights{Tensors: map[string]*graph.Tensor{}}
	for _, it := range g.Initializers() {
		w.Tensors[it.Name] = it
	}
	got, err := ToGraph(doc, w)
	require.NoError(t, err)
	assertSameGraph(t, g, got)
}

func TestDocumentFiles(t *testing.T) {
	dir := t.TempDir()
	g := sampleGraph(t)

	for _, name := range []string{"g.json", "g.yaml", "g.yml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteDocument(path, FromGraph(g, true)))
		doc, err := ReadDocument(path)
		require.NoError(t, err)
		got, err := ToGraph(doc, nil)
		require.NoError(t, err)
		assertSameGraph(t, g, got)
	}

	_, err := FormatFromPath("g.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
