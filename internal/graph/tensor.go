package graph

import (
	"fmt"
	"slices"

	"github.com/born-ml/graphopt/internal/tensor"
)

// Tensor is a named initializer (weights, bias, shape operands) with a flat
// float payload in row-major order.
type Tensor struct {
	Name string
	Dims tensor.Shape
	Type tensor.DataType
	Data []float32
}

// NewTensor creates a tensor and checks that data matches dims.
func NewTensor(name string, dims tensor.Shape, dtype tensor.DataType, data []float32) (*Tensor, error) {
	t := &Tensor{Name: name, Dims: dims.Clone(), Type: dtype, Data: slices.Clone(data)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks len(Data) == product(Dims).
func (t *Tensor) Validate() error {
	want, err := t.Dims.CheckedNumElements(4) // Data holds float32
	if err != nil {
		return fmt.Errorf("tensor %q: %w: %v", t.Name, ErrInvariant, err)
	}
	if len(t.Data) != want {
		return fmt.Errorf("tensor %q: data length %d does not match dims %v (%d elements): %w",
			t.Name, len(t.Data), t.Dims, want, ErrInvariant)
	}
	return nil
}

// Clone deep-copies the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Name: t.Name, Dims: t.Dims.Clone(), Type: t.Type, Data: slices.Clone(t.Data)}
}

// Lower returns the Constant representation of the tensor.
func (t *Tensor) Lower() *Constant {
	return &Constant{Name: t.Name, Shape: t.Dims.Clone(), Data: slices.Clone(t.Data), DataType: t.Type}
}

// ValueInfo describes a graph input or output: shape and type, no data.
type ValueInfo struct {
	Name string
	Dims tensor.Shape
	Type tensor.DataType
}

// Clone deep-copies the value info.
func (v *ValueInfo) Clone() *ValueInfo {
	return &ValueInfo{Name: v.Name, Dims: v.Dims.Clone(), Type: v.Type}
}

// Lower returns the InputData representation of the value info.
func (v *ValueInfo) Lower() *InputData {
	return &InputData{Name: v.Name, Shape: v.Dims.Clone(), DataType: v.Type}
}
