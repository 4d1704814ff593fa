package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphopt/internal/config"
	"github.com/born-ml/graphopt/internal/serialization"
)

const convReluDoc = `{
  "name": "tiny",
  "inputs": [{"name": "x", "dims": [1, 1, 2, 2], "type": "float32"}],
  "outputs": [{"name": "y", "dims": [1, 1, 2, 2], "type": "float32"}],
  "initializers": [{"name": "w", "dims": [1, 1, 1, 1], "type": "float32", "data": [2]}],
  "nodes": [
    {"name": "conv", "op_type": "Conv", "inputs": ["x", "w"], "outputs": ["c"]},
    {"name": "relu", "op_type": "Relu", "inputs": ["c"], "outputs": ["y"]}
  ]
}`

func writeGraph(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "g.json")
	require.NoError(t, os.WriteFile(path, []byte(convReluDoc), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--log-level=error"))
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"optimize", "inspect", "fakequant", "serve", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("passes"))
}

func TestRequireConfig(t *testing.T) {
	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	activeCfg = nil
	_, err := requireConfig()
	assert.Error(t, err)

	cfg := config.DefaultConfig()
	activeCfg = &cfg
	got, err := requireConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text", "pretty"} {
		assert.NoError(t, setupLogger(config.LogConfig{Level: "debug", Format: format}))
	}
	assert.Error(t, setupLogger(config.LogConfig{Level: "info", Format: "xml"}))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "graphopt "+version+"\n", out)
}

func TestOptimize_Stdout(t *testing.T) {
	out, err := run(t, "optimize", "--graph", writeGraph(t), "--passes", "fuse_relu")
	require.NoError(t, err)

	doc, err := serialization.Decode(bytes.NewBufferString(out), serialization.FormatJSON)
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, []string{"y"}, doc.Nodes[0].Outputs)
	require.Len(t, doc.Initializers, 1)
	assert.Equal(t, []float32{2}, doc.Initializers[0].Data)
}

func TestOptimize_SeparateWeights(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.yaml")
	weightsPath := filepath.Join(dir, "w.safetensors")

	_, err := run(t, "optimize",
		"--graph", writeGraph(t),
		"--out", outPath,
		"--out-weights", weightsPath,
	)
	require.NoError(t, err)

	doc, err := serialization.ReadDocument(outPath)
	require.NoError(t, err)
	require.Len(t, doc.Initializers, 1)
	assert.Empty(t, doc.Initializers[0].Data)

	weights, err := serialization.ReadSafeTensors(weightsPath)
	require.NoError(t, err)
	assert.Equal(t, "tiny", weights.Metadata["graph"])

	g, err := serialization.ToGraph(doc, weights)
	require.NoError(t, err)
	require.NoError(t, g.Validate())
	assert.Len(t, g.Nodes(), 1, "default pipeline fuses the relu")
}

func TestOptimize_Errors(t *testing.T) {
	_, err := run(t, "optimize")
	assert.Error(t, err, "missing --graph")

	_, err = run(t, "optimize", "--graph", writeGraph(t), "--passes", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pass")

	_, err = run(t, "optimize", "--graph", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	out, err := run(t, "inspect", "--graph", writeGraph(t))
	require.NoError(t, err)
	assert.Contains(t, out, "graph tiny")
	assert.Contains(t, out, "nodes: 2, initializers: 1, inputs: 1, outputs: 1")
	assert.Contains(t, out, "order: conv -> relu")
}

func TestFakeQuant(t *testing.T) {
	out, err := run(t, "fakequant", "--min=-1", "--max=6", "--values=0,7", "--gradients=1,1")
	require.NoError(t, err)
	assert.Contains(t, out, "zero_point=36")
	assert.Contains(t, out, "output: [0 ")
	assert.Contains(t, out, "backprops: [1 0]")
	assert.Contains(t, out, "grad_min=0 grad_max=1")

	_, err = run(t, "fakequant", "--min=1", "--max=2", "--values=1")
	assert.Error(t, err)
}
