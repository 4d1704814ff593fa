// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the element and shape model used by graph values.
//
// # Overview
//
// This package contains:
//   - DataType: element types (Float32, Int8, ...) with byte sizes
//   - Shape: dimension lists with element counts and permutation
//   - Layout: NCHW and NHWC activation orders
//
// # Basic Usage
//
//	shape := tensor.Shape{1, 3, 224, 224}
//	perm := tensor.LayoutPermutation(tensor.NCHW, tensor.NHWC)
//	nhwc, err := shape.Permute(perm) // [1 224 224 3]
package tensor
