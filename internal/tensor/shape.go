package tensor

import (
	"fmt"
	"math"
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// CheckedNumElements validates the shape and returns its element count. It
// fails when the count, or the count times elemSize bytes, overflows int.
func (s Shape) CheckedNumElements(elemSize int) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if elemSize < 1 {
		elemSize = 1
	}
	for _, dim := range s {
		if dim == 0 {
			return 0, nil
		}
	}
	n := 1
	for _, dim := range s {
		if n > math.MaxInt/dim {
			return 0, fmt.Errorf("shape %v: element count overflows", s)
		}
		n *= dim
	}
	if n > math.MaxInt/elemSize {
		return 0, fmt.Errorf("shape %v: %d elements of %d bytes overflow", s, n, elemSize)
	}
	return n, nil
}

// Validate checks that every dimension is non-negative.
// Zero-sized dimensions are legal in the IR (empty tensors).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Permute returns a new shape with out[i] = s[perm[i]].
func (s Shape) Permute(perm []int) (Shape, error) {
	if err := validatePermutation(perm, len(s)); err != nil {
		return nil, err
	}
	out := make(Shape, len(s))
	for i, p := range perm {
		out[i] = s[p]
	}
	return out, nil
}

// PermuteData reorders row-major data laid out as s into the order given by
// perm. The returned slice is laid out as s.Permute(perm).
func PermuteData(data []float32, s Shape, perm []int) ([]float32, error) {
	if len(data) != s.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v", len(data), s)
	}
	dst, err := s.Permute(perm)
	if err != nil {
		return nil, err
	}

	srcStrides := s.ComputeStrides()
	dstStrides := dst.ComputeStrides()
	out := make([]float32, len(data))
	idx := make([]int, len(s))
	for flat := range data {
		// Decompose flat source offset into a multi-index.
		rem := flat
		for d := range s {
			idx[d] = rem / srcStrides[d]
			rem %= srcStrides[d]
		}
		off := 0
		for i, p := range perm {
			off += idx[p] * dstStrides[i]
		}
		out[off] = data[flat]
	}
	return out, nil
}

func validatePermutation(perm []int, rank int) error {
	if len(perm) != rank {
		return fmt.Errorf("permutation %v has length %d, want %d", perm, len(perm), rank)
	}
	seen := make([]bool, rank)
	for _, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return fmt.Errorf("invalid permutation %v", perm)
		}
		seen[p] = true
	}
	return nil
}
