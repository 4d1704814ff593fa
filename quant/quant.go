// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package quant

import (
	"github.com/born-ml/graphopt/internal/quant"
	"github.com/born-ml/graphopt/internal/tensor"
)

var (
	ErrInvalidRange  = quant.ErrInvalidRange
	ErrShapeMismatch = quant.ErrShapeMismatch
)

// RangeError reports a rejected [min, max] range.
type RangeError = quant.RangeError

// TensorType selects the EV scale rule.
type TensorType = quant.TensorType

// Tensor roles.
const (
	Weight     = quant.Weight
	Activation = quant.Activation
	Layer      = quant.Layer
)

// ParseTensorType accepts "weight", "activation" or "layer".
func ParseTensorType(s string) (TensorType, error) {
	return quant.ParseTensorType(s)
}

// Params configures a fake-quant transform.
type Params = quant.Params

// Nudged is a range adjusted so that real 0 is exactly representable.
type Nudged = quant.Nudged

// Scales are the weight and input scales reported by FakeQuantVars.
type Scales = quant.Scales

// DefaultParams returns unsigned 8-bit parameters.
func DefaultParams() Params {
	return quant.DefaultParams()
}

// Nudge computes the nudged range and zero point.
func Nudge(minVal, maxVal float32, p Params) (Nudged, error) {
	return quant.Nudge(minVal, maxVal, p)
}

// Whole tensor

// FakeQuant fake-quantizes in into out.
func FakeQuant(in, out []float32, minVal, maxVal float32, p Params) error {
	return quant.FakeQuant(in, out, minVal, maxVal, p)
}

// FakeQuantVars is FakeQuant for learned ranges.
func FakeQuantVars(in, out []float32, minVal, maxVal float32, p Params) (Scales, error) {
	return quant.FakeQuantVars(in, out, minVal, maxVal, p)
}

// Gradient writes the straight-through gradient into backprops.
func Gradient(grads, in, backprops []float32, minVal, maxVal float32, p Params) error {
	return quant.Gradient(grads, in, backprops, minVal, maxVal, p)
}

// GradientVars also returns the gradients with respect to min and max.
func GradientVars(grads, in, backprops []float32, minVal, maxVal float32, p Params) (gradMin, gradMax float32, err error) {
	return quant.GradientVars(grads, in, backprops, minVal, maxVal, p)
}

// Per channel

// PerChannel fake-quantizes a row-major [b, d] matrix column by column.
func PerChannel(in, out, mins, maxs []float32, p Params) error {
	return quant.PerChannel(in, out, mins, maxs, p)
}

// PerChannelAxis fake-quantizes in, shaped as shape, along axis.
func PerChannelAxis(in, out []float32, shape tensor.Shape, axis int, mins, maxs []float32, p Params) error {
	return quant.PerChannelAxis(in, out, shape, axis, mins, maxs, p)
}

// PerChannelGradient is the column-wise GradientVars of a [b, d] matrix.
func PerChannelGradient(grads, in, backprops, mins, maxs []float32, p Params) (gradMins, gradMaxs []float32, err error) {
	return quant.PerChannelGradient(grads, in, backprops, mins, maxs, p)
}

// PerChannelGradientAxis is GradientVars per channel along axis.
func PerChannelGradientAxis(grads, in, backprops []float32, shape tensor.Shape, axis int, mins, maxs []float32, p Params) (gradMins, gradMaxs []float32, err error) {
	return quant.PerChannelGradientAxis(grads, in, backprops, shape, axis, mins, maxs, p)
}

// ChannelRanges returns per-channel ranges widened to include zero.
func ChannelRanges(data []float32, shape tensor.Shape, axis int) (mins, maxs []float32, err error) {
	return quant.ChannelRanges(data, shape, axis)
}

// TensorRange returns the whole-tensor range widened to include zero.
func TensorRange(data []float32) (minVal, maxVal float32) {
	return quant.TensorRange(data)
}
