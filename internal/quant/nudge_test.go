package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNudge(t *testing.T) {
	n, err := Nudge(-1, 6, DefaultParams())
	require.NoError(t, err)

	assert.InDelta(t, 7.0/255.0, n.Scale, 1e-7)
	assert.Equal(t, 36, n.ZeroPoint)
	assert.InDelta(t, -0.98824, n.Min, 1e-4)
	assert.InDelta(t, 6.01176, n.Max, 1e-4)
}

func TestNudge_SignedCodes(t *testing.T) {
	p := DefaultParams()
	p.QuantMin, p.QuantMax = -128, 127

	n, err := Nudge(-0.5, 1.5, p)
	require.NoError(t, err)
	assert.Equal(t, -64, n.ZeroPoint)
	assert.InDelta(t, -64*2.0/255.0, n.Min, 1e-5)
	assert.InDelta(t, 191*2.0/255.0, n.Max, 1e-5)
}

func TestNudge_ZeroPointClamped(t *testing.T) {
	n, err := Nudge(0, 1, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, n.ZeroPoint)
	assert.Equal(t, float32(0), n.Min)
	assert.InDelta(t, 1.0, n.Max, 1e-6)
}

func TestNudge_EVWeight(t *testing.T) {
	p := Params{QuantMin: -128, QuantMax: 127, EVQuant: true, TensorType: Weight}

	n, err := Nudge(-1, 2.54, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, n.Scale, 1e-6)
	assert.Equal(t, 0, n.ZeroPoint)
	assert.InDelta(t, -2.56, n.Min, 1e-4)
	assert.InDelta(t, 2.54, n.Max, 1e-4)
}

func TestNudge_EVActivation(t *testing.T) {
	p := DefaultParams()
	p.EVQuant = true

	n, err := Nudge(0, 6, p)
	require.NoError(t, err)
	// value = 127.5, ceil(log2(765)) = 10, shift = 2.
	assert.InDelta(t, 4/127.5, n.Scale, 1e-6)
	assert.Equal(t, 64, n.ZeroPoint)
}

func TestNudge_InvalidRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max float32
	}{
		{"positive min", 1, 2},
		{"negative max", -2, -1},
		{"empty", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Nudge(tt.min, tt.max, DefaultParams())
			assert.ErrorIs(t, err, ErrInvalidRange)

			var re *RangeError
			assert.ErrorAs(t, err, &re)
		})
	}
}

func TestNudge_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.QuantMin, p.QuantMax = 10, 10
	_, err := Nudge(-1, 1, p)
	assert.ErrorIs(t, err, ErrInvalidRange)

	p = DefaultParams()
	p.EVQuant = true
	p.InputsScale = 0
	_, err = Nudge(-1, 1, p)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseTensorType(t *testing.T) {
	for _, tt := range []TensorType{Weight, Activation, Layer} {
		got, err := ParseTensorType(tt.String())
		require.NoError(t, err)
		assert.Equal(t, tt, got)
	}
	_, err := ParseTensorType("bogus")
	assert.Error(t, err)
}

func TestNudge_ZeroExactAcrossCodeRanges(t *testing.T) {
	codeRanges := []struct {
		name       string
		qmin, qmax int
	}{
		{"uint8", 0, 255},
		{"int8", -128, 127},
		{"uint4", 0, 15},
		{"int4", -8, 7},
		{"binary", 0, 1},
		{"uint16", 0, 65535},
	}
	for _, cr := range codeRanges {
		for _, ev := range []bool{false, true} {
			p := Params{QuantMin: cr.qmin, QuantMax: cr.qmax, EVQuant: ev, TensorType: Weight, WeightsScale: 1, InputsScale: 1}
			for i := 0; i <= 200; i++ {
				minVal := -float32(i) * 0.0371
				maxVal := float32(200-i) * 0.0533
				if i == 200 {
					maxVal = 0.001
				}
				n, err := Nudge(minVal, maxVal, p)
				require.NoError(t, err, "%s ev=%v [%g, %g]", cr.name, ev, minVal, maxVal)
				require.LessOrEqual(t, n.Min, float32(0))
				require.GreaterOrEqual(t, n.Max, float32(0))
				require.GreaterOrEqual(t, n.ZeroPoint, cr.qmin)
				require.LessOrEqual(t, n.ZeroPoint, cr.qmax)

				out := make([]float32, 1)
				require.NoError(t, FakeQuant([]float32{0}, out, minVal, maxVal, p))
				require.Equal(t, float32(0), out[0], "%s ev=%v [%g, %g]", cr.name, ev, minVal, maxVal)
			}
		}
	}
}
