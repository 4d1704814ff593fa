// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package graph_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphopt/graph"
	"github.com/born-ml/graphopt/tensor"
)

func buildGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("tiny")
	require.NoError(t, g.AddInput(&graph.ValueInfo{Name: "x", Dims: tensor.Shape{1, 2, 2, 2}}))
	w, err := graph.NewTensor("w", tensor.Shape{3, 2, 1, 1}, tensor.Float32, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.NoError(t, g.AddInitializer(w))
	conv := graph.NewNode("conv", graph.OpConv, []string{"x", "w"}, []string{"c"})
	conv.SetAttribute(graph.AttrActivation, graph.Int(graph.ActivationNone))
	require.NoError(t, g.AddNode(conv))
	require.NoError(t, g.AddNode(graph.NewNode("relu", graph.OpRelu, []string{"c"}, []string{"y"})))
	require.NoError(t, g.AddOutput(&graph.ValueInfo{Name: "y", Dims: tensor.Shape{1, 3, 2, 2}}))
	require.NoError(t, g.Validate())
	return g
}

func TestReadWrite(t *testing.T) {
	g := buildGraph(t)
	dir := t.TempDir()

	for _, tc := range []struct{ doc, weights string }{
		{filepath.Join(dir, "inline.json"), ""},
		{filepath.Join(dir, "split.yaml"), filepath.Join(dir, "w.safetensors")},
	} {
		require.NoError(t, graph.Write(g, tc.doc, tc.weights))
		got, err := graph.Read(tc.doc, tc.weights)
		require.NoError(t, err)
		require.NoError(t, got.Validate())

		assert.Equal(t, g.Summary(), got.Summary())
		want, err := g.InitializerTensor("w")
		require.NoError(t, err)
		w, err := got.InitializerTensor("w")
		require.NoError(t, err)
		assert.Equal(t, want.Data, w.Data)

		conv, err := got.Node("conv")
		require.NoError(t, err)
		assert.Equal(t, graph.ActivationNone, graph.GetAttrInt(conv, graph.AttrActivation, -1))
	}
}

func TestValidateReportsDanglingEdges(t *testing.T) {
	g := graph.New("broken")
	require.NoError(t, g.AddNode(graph.NewNode("relu", graph.OpRelu, []string{"ghost"}, []string{"y"})))

	err := g.Validate()
	require.ErrorIs(t, err, graph.ErrStructural)
	var se *graph.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Dangling, graph.Edge{Node: "relu", Tensor: "ghost"})
}
