package quant

import (
	"fmt"
	"math"
)

// Scales are the effective weight and input scales reported by FakeQuantVars.
type Scales struct {
	Weights float32
	Inputs  float32
}

func checkLen(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%s has %d values, want %d: %w", name, got, want, ErrShapeMismatch)
	}
	return nil
}

// isDegenerate reports the uninitialized (0, 0) range.
func isDegenerate(minVal, maxVal float32) bool {
	return minVal == 0 && maxVal == 0
}

// quantize maps one value onto the nudged grid.
func quantize(x float32, n Nudged) float32 {
	clamped := min(max(x, n.Min), n.Max)
	q := float32(math.Floor(float64((clamped-n.Min)/n.Scale + 0.5)))
	// The conversion keeps the product rounded so that 0 maps back to 0.
	return float32(q*n.Scale) + n.Min
}

// FakeQuant writes the fake-quantized in to out. The range must satisfy
// min <= 0 <= max and min < max.
func FakeQuant(in, out []float32, minVal, maxVal float32, p Params) error {
	if err := checkLen("out", len(out), len(in)); err != nil {
		return err
	}
	n, err := Nudge(minVal, maxVal, p)
	if err != nil {
		return err
	}
	for i, x := range in {
		out[i] = quantize(x, n)
	}
	return nil
}

// FakeQuantVars is FakeQuant for learned ranges: a (0, 0) range zeroes out
// instead of failing. It also reports the scales the EV rule settled on:
// the nudged scale replaces the weight scale for Weight tensors and the input
// scale otherwise. Outside EV mode the configured scales are returned as is.
func FakeQuantVars(in, out []float32, minVal, maxVal float32, p Params) (Scales, error) {
	scales := Scales{Weights: p.WeightsScale, Inputs: p.InputsScale}
	if err := checkLen("out", len(out), len(in)); err != nil {
		return scales, err
	}
	if isDegenerate(minVal, maxVal) {
		clear(out)
		return scales, nil
	}
	n, err := Nudge(minVal, maxVal, p)
	if err != nil {
		return scales, err
	}
	for i, x := range in {
		out[i] = quantize(x, n)
	}
	if p.EVQuant {
		if p.TensorType == Weight {
			scales.Weights = n.Scale
		} else {
			scales.Inputs = n.Scale
		}
	}
	return scales, nil
}

// Gradient applies the straight-through estimator: grads pass where the input
// lies in [nudged min, nudged max] and are zeroed elsewhere.
func Gradient(grads, in, backprops []float32, minVal, maxVal float32, p Params) error {
	if err := checkLen("inputs", len(in), len(grads)); err != nil {
		return err
	}
	if err := checkLen("backprops", len(backprops), len(grads)); err != nil {
		return err
	}
	n, err := Nudge(minVal, maxVal, p)
	if err != nil {
		return err
	}
	for i, g := range grads {
		if in[i] >= n.Min && in[i] <= n.Max {
			backprops[i] = g
		} else {
			backprops[i] = 0
		}
	}
	return nil
}

// GradientVars is Gradient for learned ranges. It also returns the gradient
// with respect to min (sum of grads strictly below the nudged min) and max
// (sum strictly above the nudged max). A (0, 0) range passes every gradient
// through and reports zero range gradients.
func GradientVars(grads, in, backprops []float32, minVal, maxVal float32, p Params) (gradMin, gradMax float32, err error) {
	if err := checkLen("inputs", len(in), len(grads)); err != nil {
		return 0, 0, err
	}
	if err := checkLen("backprops", len(backprops), len(grads)); err != nil {
		return 0, 0, err
	}
	if isDegenerate(minVal, maxVal) {
		copy(backprops, grads)
		return 0, 0, nil
	}
	n, err := Nudge(minVal, maxVal, p)
	if err != nil {
		return 0, 0, err
	}
	var below, above float64
	for i, g := range grads {
		switch x := in[i]; {
		case x < n.Min:
			backprops[i] = 0
			below += float64(g)
		case x > n.Max:
			backprops[i] = 0
			above += float64(g)
		default:
			backprops[i] = g
		}
	}
	return float32(below), float32(above), nil
}
