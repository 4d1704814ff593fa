// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package quant provides fake quantization and its straight-through
// gradient.
//
// # Overview
//
// Nudge adjusts a [min, max] range so that real 0 is exactly representable on
// the integer grid [QuantMin, QuantMax]. FakeQuant rounds values onto that
// grid and back to float32. The gradient passes incoming gradients through
// inside the nudged range and routes the rest to the range bounds.
//
// Both whole-tensor and per-channel variants are provided. A (0, 0) range is
// treated as uninitialized by the Vars and per-channel functions: the output
// is zeroed and gradients pass through.
//
// # Basic Usage
//
//	p := quant.DefaultParams() // unsigned 8-bit
//	out := make([]float32, len(in))
//	if err := quant.FakeQuant(in, out, -1, 6, p); err != nil {
//	    return err
//	}
package quant
