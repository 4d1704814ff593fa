// Package quant implements fake quantization: the nudged min/max/scale
// computation and the forward and straight-through gradient transforms at
// whole-tensor and per-channel granularity.
package quant

import (
	"errors"
	"fmt"
	"math"
)

// Common errors.
var (
	ErrInvalidRange  = errors.New("invalid quantization range")
	ErrShapeMismatch = errors.New("buffer length mismatch")
)

// RangeError reports a violated min/max precondition.
type RangeError struct {
	Min, Max float32
	Reason   string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("min=%g max=%g: %s", e.Min, e.Max, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidRange.
func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// TensorType selects the EV scale rule.
type TensorType int

// Tensor roles.
const (
	Weight TensorType = iota
	Activation
	Layer
)

// String returns the role name.
func (t TensorType) String() string {
	switch t {
	case Weight:
		return "weight"
	case Activation:
		return "activation"
	case Layer:
		return "layer"
	default:
		return "unknown"
	}
}

// ParseTensorType parses "weight", "activation" or "layer".
func ParseTensorType(s string) (TensorType, error) {
	switch s {
	case "weight", "0":
		return Weight, nil
	case "activation", "1":
		return Activation, nil
	case "layer", "bias", "2":
		return Layer, nil
	default:
		return 0, fmt.Errorf("unknown tensor type %q", s)
	}
}

// Default scales used by the EV activation rule.
const (
	DefaultWeightsScale float32 = 1
	DefaultInputsScale  float32 = 1 / 127.5
)

const (
	signedMax  = 127 // EV weight/layer codes are symmetric signed 8-bit.
	evNumBits  = 8
	defaultMin = 0
	defaultMax = 255
)

// Params configures a fake-quant transform.
type Params struct {
	QuantMin     int        // Lowest integer code, e.g. 0 or -128.
	QuantMax     int        // Highest integer code, e.g. 255 or 127.
	TensorType   TensorType // Only consulted when EVQuant is set.
	EVQuant      bool       // EV scale derivation instead of the TF rule.
	WeightsScale float32    // EV activation rule input.
	InputsScale  float32    // EV activation rule input.
}

// DefaultParams returns unsigned 8-bit TF-style parameters.
func DefaultParams() Params {
	return Params{
		QuantMin:     defaultMin,
		QuantMax:     defaultMax,
		TensorType:   Activation,
		WeightsScale: DefaultWeightsScale,
		InputsScale:  DefaultInputsScale,
	}
}

// Nudged holds the range adjusted so that real 0 is exactly representable.
type Nudged struct {
	Min       float32
	Max       float32
	Scale     float32
	ZeroPoint int
}

// checkRange enforces min <= 0 <= max and min < max.
func checkRange(minVal, maxVal float32) error {
	switch {
	case math.IsNaN(float64(minVal)) || math.IsNaN(float64(maxVal)):
		return &RangeError{Min: minVal, Max: maxVal, Reason: "NaN bound"}
	case minVal > 0:
		return &RangeError{Min: minVal, Max: maxVal, Reason: "min should be <= 0"}
	case maxVal < 0:
		return &RangeError{Min: minVal, Max: maxVal, Reason: "max should be >= 0"}
	case minVal >= maxVal:
		return &RangeError{Min: minVal, Max: maxVal, Reason: "min should be < max"}
	}
	return nil
}

func (p Params) validate() error {
	if p.QuantMin >= p.QuantMax {
		return fmt.Errorf("quant_min %d must be below quant_max %d: %w", p.QuantMin, p.QuantMax, ErrInvalidRange)
	}
	if p.EVQuant && p.TensorType == Activation && (p.WeightsScale <= 0 || p.InputsScale <= 0) {
		return fmt.Errorf("weights_scale %g and inputs_scale %g must be positive: %w",
			p.WeightsScale, p.InputsScale, ErrInvalidRange)
	}
	return nil
}

// Nudge computes the nudged range and scale for [minVal, maxVal].
//
// TF mode: scale = (max-min)/(qmax-qmin) and the zero point is derived from
// min. EV mode: the scale comes from the tensor role and the zero point is
// derived from max. In both modes the zero point is clamped to the code range
// and then rounded half away from zero.
func Nudge(minVal, maxVal float32, p Params) (Nudged, error) {
	if err := checkRange(minVal, maxVal); err != nil {
		return Nudged{}, err
	}
	if err := p.validate(); err != nil {
		return Nudged{}, err
	}

	qmin := float32(p.QuantMin)
	qmax := float32(p.QuantMax)

	var scale, zeroPointFrom float32
	if p.EVQuant {
		scale = evScale(minVal, maxVal, p)
		zeroPointFrom = qmax - maxVal/scale
	} else {
		scale = (maxVal - minVal) / (qmax - qmin)
		zeroPointFrom = qmin - minVal/scale
	}

	zp := nudgeZeroPoint(zeroPointFrom, p.QuantMin, p.QuantMax)
	return Nudged{
		Min:       (qmin - float32(zp)) * scale,
		Max:       (qmax - float32(zp)) * scale,
		Scale:     scale,
		ZeroPoint: zp,
	}, nil
}

func nudgeZeroPoint(from float32, qmin, qmax int) int {
	switch {
	case from < float32(qmin):
		return qmin
	case from > float32(qmax):
		return qmax
	default:
		return int(math.Round(float64(from)))
	}
}

func evScale(minVal, maxVal float32, p Params) float32 {
	absMax := max(-minVal, maxVal)
	if p.TensorType != Activation {
		// Weight and Layer share the symmetric signed rule.
		return 1 / (signedMax / absMax)
	}
	value := (1 / p.InputsScale) * (1 / p.WeightsScale)
	multiplier := value * absMax
	bitsToShift := int(math.Ceil(math.Log2(float64(multiplier)))) - evNumBits
	return float32(1 / (float64(value) / math.Pow(2, float64(bitsToShift))))
}
