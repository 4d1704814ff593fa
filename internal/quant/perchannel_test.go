package quant

import (
	"testing"

	"github.com/born-ml/graphopt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerChannel(t *testing.T) {
	// [3, 2] row-major; column 1 has the degenerate range.
	in := []float32{-2, 1, 0.4, 2, 7, 3}
	out := make([]float32, len(in))

	require.NoError(t, PerChannel(in, out, []float32{-1, 0}, []float32{6, 0}, DefaultParams()))

	col0 := []float32{in[0], in[2], in[4]}
	want := make([]float32, 3)
	require.NoError(t, FakeQuant(col0, want, -1, 6, DefaultParams()))

	assert.Equal(t, want, []float32{out[0], out[2], out[4]})
	assert.Equal(t, []float32{0, 0, 0}, []float32{out[1], out[3], out[5]})
}

func TestPerChannel_InvalidChannelWritesNothing(t *testing.T) {
	in := []float32{1, 2, 3, 4}
	out := []float32{9, 9, 9, 9}

	err := PerChannel(in, out, []float32{-1, 1}, []float32{1, 2}, DefaultParams())
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Equal(t, []float32{9, 9, 9, 9}, out)
}

func TestPerChannel_ShapeErrors(t *testing.T) {
	out := make([]float32, 3)
	assert.ErrorIs(t, PerChannel([]float32{1, 2, 3}, out, []float32{-1, -1}, []float32{1, 1}, DefaultParams()), ErrShapeMismatch)
	assert.ErrorIs(t, PerChannel([]float32{1, 2}, out, []float32{-1, -1}, []float32{1, 1}, DefaultParams()), ErrShapeMismatch)
	assert.ErrorIs(t, PerChannel([]float32{1, 2}, out[:2], []float32{-1, -1}, []float32{1}, DefaultParams()), ErrShapeMismatch)
}

func TestPerChannelAxis_InvalidShapes(t *testing.T) {
	in := []float32{1, 2, 3}
	out := make([]float32, 3)
	ranges := []float32{-1, -1, -1}
	for _, shape := range []tensor.Shape{{-1, 3, -1}, {3, -1}, {1 << 62, 1 << 62, 3}} {
		err := PerChannelAxis(in, out, shape, 1, ranges, []float32{1, 1, 1}, DefaultParams())
		assert.ErrorIs(t, err, ErrShapeMismatch, "shape %v", shape)
		_, _, err = ChannelRanges(in, shape, 1)
		assert.ErrorIs(t, err, ErrShapeMismatch, "shape %v", shape)
	}
}

func TestPerChannelAxis(t *testing.T) {
	// OIHW weights with 2 output channels of 4 values each.
	shape := tensor.Shape{2, 1, 2, 2}
	in := []float32{-1, 0, 0.5, 1, -4, -2, 2, 8}
	out := make([]float32, len(in))

	mins, maxs, err := ChannelRanges(in, shape, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -4}, mins)
	assert.Equal(t, []float32{1, 8}, maxs)

	require.NoError(t, PerChannelAxis(in, out, shape, 0, mins, maxs, DefaultParams()))
	for c := 0; c < 2; c++ {
		want := make([]float32, 4)
		require.NoError(t, FakeQuant(in[c*4:c*4+4], want, mins[c], maxs[c], DefaultParams()))
		assert.Equal(t, want, out[c*4:c*4+4])
	}

	_, _, err = ChannelRanges(in, shape, 4)
	assert.Error(t, err)
}

func TestPerChannelGradient(t *testing.T) {
	// [2, 2]: column 0 range [-1, 1], column 1 range [0, 2].
	in := []float32{-3, 5, 0.5, 1}
	grads := []float32{1, 2, 3, 4}
	back := make([]float32, 4)

	gMins, gMaxs, err := PerChannelGradient(grads, in, back, []float32{-1, 0}, []float32{1, 2}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 3, 4}, back)
	assert.Equal(t, []float32{1, 0}, gMins)
	assert.Equal(t, []float32{0, 2}, gMaxs)
}

func TestPerChannelGradient_Degenerate(t *testing.T) {
	in := []float32{-3, 5}
	grads := []float32{1, 2}
	back := make([]float32, 2)

	gMins, gMaxs, err := PerChannelGradient(grads, in, back, []float32{0, 0}, []float32{0, 0}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, grads, back)
	assert.Equal(t, []float32{0, 0}, gMins)
	assert.Equal(t, []float32{0, 0}, gMaxs)
}

func TestTensorRange(t *testing.T) {
	lo, hi := TensorRange([]float32{1, 2, 3})
	assert.Equal(t, float32(0), lo)
	assert.Equal(t, float32(3), hi)

	lo, hi = TensorRange([]float32{-2, -1})
	assert.Equal(t, float32(-2), lo)
	assert.Equal(t, float32(0), hi)
}
