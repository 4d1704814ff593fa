package optimizer

import (
	"testing"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// layoutGraph is an NCHW graph: x -> conv -> c -> concat(c, c) -> y and
// c -> flatten -> f -> softmax -> z.
func layoutGraph(t *testing.T) *graph.Graph {
	return newBuilder(t, "layout").
		input("x", 1, 2, 1, 2).
		output("y", 1, 2, 1, 1).
		output("z", 1, 1).
		init("w", tensor.Shape{1, 2, 1, 2}, 1, 2, 3, 4).
		node("conv", graph.OpConv, []string{"x", "w"}, []string{"c"}).
		node("concat", graph.OpConcat, []string{"c", "c"}, []string{"y"}, graph.AttrAxis, graph.Int(1)).
		node("flatten", graph.OpFlatten, []string{"c"}, []string{"f"}).
		node("softmax", graph.OpSoftmax, []string{"f"}, []string{"z"}, graph.AttrAxis, graph.Int(1)).
		build()
}

func TestConvertLayout(t *testing.T) {
	g := layoutGraph(t)
	require.NoError(t, NewConvertLayout(tensor.NCHW, tensor.NHWC).Run(g))

	x, err := g.Input("x")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, x.Dims)

	y, err := g.Output("y")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 1, 2}, y.Dims)

	z, err := g.Output("z")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1}, z.Dims, "2-D outputs are untouched")

	w, err := g.InitializerTensor("w")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, w.Dims)
	assert.Equal(t, []float32{1, 3, 2, 4}, w.Data)

	concat, err := g.Node("concat")
	require.NoError(t, err)
	assert.Equal(t, int64(3), graph.GetAttrInt(concat, graph.AttrAxis, -1))
	assert.Equal(t, "NHWC", graph.GetAttrString(concat, graph.AttrDataLayout, ""))

	flatten, err := g.Node("flatten")
	require.NoError(t, err)
	_, hasAxis := flatten.Attribute(graph.AttrAxis)
	assert.False(t, hasAxis, "default split axis 1 is kept")
	assert.Equal(t, "NHWC", graph.GetAttrString(flatten, graph.AttrDataLayout, ""))

	softmax, err := g.Node("softmax")
	require.NoError(t, err)
	assert.Equal(t, int64(1), graph.GetAttrInt(softmax, graph.AttrAxis, -1))
	_, stamped := softmax.Attribute(graph.AttrDataLayout)
	assert.False(t, stamped)

	conv, err := g.Node("conv")
	require.NoError(t, err)
	assert.Equal(t, "NHWC", graph.GetAttrString(conv, graph.AttrDataLayout, ""))
}

func TestConvertLayout_RoundTrip(t *testing.T) {
	g := layoutGraph(t)
	require.NoError(t, NewConvertLayout(tensor.NCHW, tensor.NHWC).Run(g))
	require.NoError(t, NewConvertLayout(tensor.NHWC, tensor.NCHW).Run(g))

	want := layoutGraph(t)
	wantW, err := want.InitializerTensor("w")
	require.NoError(t, err)
	gotW, err := g.InitializerTensor("w")
	require.NoError(t, err)
	assert.Equal(t, wantW, gotW)
	assert.Equal(t, want.Inputs(), g.Inputs())
	assert.Equal(t, want.Outputs(), g.Outputs())

	concat, err := g.Node("concat")
	require.NoError(t, err)
	assert.Equal(t, int64(1), graph.GetAttrInt(concat, graph.AttrAxis, -1))
}

func TestConvertLayout_InputTensors(t *testing.T) {
	g := layoutGraph(t)
	buf, err := graph.NewTensor("x", tensor.Shape{1, 2, 1, 2}, tensor.Float32, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, g.AddInputTensor(buf))

	require.NoError(t, NewConvertLayout(tensor.NCHW, tensor.NHWC).Run(g))
	got := g.InputTensors()
	require.Len(t, got, 1)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, got[0].Dims)
	assert.Equal(t, []float32{1, 3, 2, 4}, got[0].Data)
}

// flattenDims computes the 2-D output shape of Flatten for the given axis.
func flattenDims(in tensor.Shape, axis int) tensor.Shape {
	outer, inner := 1, 1
	for i, d := range in {
		if i < axis {
			outer *= d
		} else {
			inner *= d
		}
	}
	return tensor.Shape{outer, inner}
}

func TestConvertLayout_FlattenSplitAxis(t *testing.T) {
	tests := []struct {
		name    string
		axis    int64
		wantErr bool
	}{
		{name: "batch", axis: 1},
		{name: "all", axis: 0},
		{name: "rank", axis: 4},
		{name: "negative batch", axis: -3},
		{name: "channels", axis: 2, wantErr: true},
		{name: "spatial", axis: -1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newBuilder(t, "flatten").
				input("x", 1, 3, 4, 4).
				output("f", 1, 48).
				node("relu", graph.OpRelu, []string{"x"}, []string{"r"}).
				node("flatten", graph.OpFlatten, []string{"r"}, []string{"f"}, graph.AttrAxis, graph.Int(tt.axis)).
				build()
			before, err := g.Input("x")
			require.NoError(t, err)
			beforeDims := before.Dims.Clone()

			err = NewConvertLayout(tensor.NCHW, tensor.NHWC).Run(g)
			if tt.wantErr {
				require.ErrorIs(t, err, graph.ErrInvariant)
				assert.Contains(t, err.Error(), `"flatten"`)
				x, xerr := g.Input("x")
				require.NoError(t, xerr)
				assert.Equal(t, beforeDims, x.Dims, "graph is untouched on rejection")
				return
			}
			require.NoError(t, err)

			flatten, err := g.Node("flatten")
			require.NoError(t, err)
			assert.Equal(t, tt.axis, graph.GetAttrInt(flatten, graph.AttrAxis, 99))

			x, err := g.Input("x")
			require.NoError(t, err)
			axis := int(tt.axis)
			if axis < 0 {
				axis += 4
			}
			assert.Equal(t, flattenDims(beforeDims, axis), flattenDims(x.Dims, axis))
		})
	}
}

func TestConvertLayout_SameLayout(t *testing.T) {
	err := NewConvertLayout(tensor.NHWC, tensor.NHWC).Run(layoutGraph(t))
	assert.ErrorIs(t, err, ErrNotApplicable)
}
