// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optimizer_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphopt/graph"
	"github.com/born-ml/graphopt/optimizer"
	"github.com/born-ml/graphopt/tensor"
)

func convReluGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("tiny")
	require.NoError(t, g.AddInput(&graph.ValueInfo{Name: "x", Dims: tensor.Shape{1, 1, 2, 2}}))
	w, err := graph.NewTensor("w", tensor.Shape{1, 1, 1, 1}, tensor.Float32, []float32{2})
	require.NoError(t, err)
	require.NoError(t, g.AddInitializer(w))
	require.NoError(t, g.AddNode(graph.NewNode("conv", graph.OpConv, []string{"x", "w"}, []string{"c"})))
	require.NoError(t, g.AddNode(graph.NewNode("relu", graph.OpRelu, []string{"c"}, []string{"y"})))
	require.NoError(t, g.AddOutput(&graph.ValueInfo{Name: "y", Dims: tensor.Shape{1, 1, 2, 2}}))
	return g
}

func TestOptimize(t *testing.T) {
	g := convReluGraph(t)
	var logs bytes.Buffer
	h := slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})

	results, err := optimizer.Optimize(context.Background(), g,
		[]string{optimizer.NameFuseRelu}, optimizer.DefaultOptions(),
		optimizer.WithLogHandler(h))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped)
	assert.Contains(t, logs.String(), "pass done")

	nodes := g.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, []string{"y"}, nodes[0].Outputs)
	assert.Equal(t, graph.ActivationRelu, graph.GetAttrInt(nodes[0], graph.AttrActivation, graph.ActivationNone))
}

func TestManager_SkipsNotApplicable(t *testing.T) {
	g := convReluGraph(t)
	m := optimizer.NewManager()
	m.Add(optimizer.NewConvertLayout(tensor.NCHW, tensor.NCHW))

	results, err := m.Run(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Len(t, g.Nodes(), 2)
}

func TestOptimize_UnknownPass(t *testing.T) {
	_, err := optimizer.Optimize(context.Background(), convReluGraph(t), []string{"nope"}, optimizer.DefaultOptions())
	assert.Error(t, err)
}
