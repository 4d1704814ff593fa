// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/graphopt/internal/tensor"
)

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// Element types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Int8    = tensor.Int8
	Float16 = tensor.Float16
	Bool    = tensor.Bool
)

// ParseDataType accepts names such as "float32" or "F32".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// Shape is a list of non-negative dimensions.
type Shape = tensor.Shape

// PermuteData reorders row-major data of shape s by perm.
func PermuteData(data []float32, s Shape, perm []int) ([]float32, error) {
	return tensor.PermuteData(data, s, perm)
}

// Layout is a 4-D activation dimension order.
type Layout = tensor.Layout

// Layouts.
const (
	NCHW = tensor.NCHW
	NHWC = tensor.NHWC
)

// ParseLayout parses "NCHW" or "NHWC", case-insensitively.
func ParseLayout(s string) (Layout, error) {
	return tensor.ParseLayout(s)
}

// LayoutPermutation returns the axis permutation taking from to to.
func LayoutPermutation(from, to Layout) []int {
	return tensor.LayoutPermutation(from, to)
}

// MapAxis maps an axis index of a from-layout tensor to the to-layout index.
func MapAxis(axis int, from, to Layout) (int, error) {
	return tensor.MapAxis(axis, from, to)
}
