// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package graph

import (
	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/serialization"
	"github.com/born-ml/graphopt/internal/tensor"
)

// Graph is a mutable computation graph.
type Graph = graph.Graph

// Node is one operation.
type Node = graph.Node

// Tensor is an initializer with its payload.
type Tensor = graph.Tensor

// ValueInfo describes a graph input or output.
type ValueInfo = graph.ValueInfo

// Attribute is a node attribute value.
type Attribute = graph.Attribute

// Summary reports collection sizes.
type Summary = graph.Summary

// Edge is one unresolved node slot.
type Edge = graph.Edge

// Errors

// NotFoundError names the missing element.
type NotFoundError = graph.NotFoundError

// StructuralError lists dangling edges found by Validate.
type StructuralError = graph.StructuralError

var (
	ErrNotFound   = graph.ErrNotFound
	ErrDuplicate  = graph.ErrDuplicate
	ErrInvariant  = graph.ErrInvariant
	ErrStructural = graph.ErrStructural
)

// Operator kinds.
const (
	OpInputData     = graph.OpInputData
	OpConstant      = graph.OpConstant
	OpConv          = graph.OpConv
	OpDepthwiseConv = graph.OpDepthwiseConv
	OpGemm          = graph.OpGemm
	OpRelu          = graph.OpRelu
	OpReshape       = graph.OpReshape
	OpAdd           = graph.OpAdd
	OpConcat        = graph.OpConcat
	OpSoftmax       = graph.OpSoftmax
	OpFlatten       = graph.OpFlatten
	OpTranspose     = graph.OpTranspose
	OpMaxPool       = graph.OpMaxPool
	OpAveragePool   = graph.OpAveragePool
	OpFakeQuant     = graph.OpFakeQuant
)

// Attribute names.
const (
	AttrActivation   = graph.AttrActivation
	AttrAxis         = graph.AttrAxis
	AttrDataLayout   = graph.AttrDataLayout
	AttrQuantMin     = graph.AttrQuantMin
	AttrQuantMax     = graph.AttrQuantMax
	AttrWeightsScale = graph.AttrWeightsScale
	AttrInputsScale  = graph.AttrInputsScale
)

// Fused activation codes.
const (
	ActivationNone = graph.ActivationNone
	ActivationRelu = graph.ActivationRelu
)

// New returns an empty graph.
func New(name string) *Graph {
	return graph.New(name)
}

// NewNode returns a node without attributes.
func NewNode(name, opType string, inputs, outputs []string) *Node {
	return graph.NewNode(name, opType, inputs, outputs)
}

// NewTensor returns an initializer, checking that data matches dims.
func NewTensor(name string, dims tensor.Shape, dtype tensor.DataType, data []float32) (*Tensor, error) {
	return graph.NewTensor(name, dims, dtype, data)
}

// Attribute constructors.
var (
	Int    = graph.Int
	Float  = graph.Float
	String = graph.String
	Ints   = graph.Ints
	Floats = graph.Floats
)

// Typed attribute getters returning defaultVal when the attribute is absent
// or of another kind.
var (
	GetAttrInt    = graph.GetAttrInt
	GetAttrFloat  = graph.GetAttrFloat
	GetAttrInts   = graph.GetAttrInts
	GetAttrString = graph.GetAttrString
)

// Read loads a graph document (.json, .yaml or .yml). When weightsPath is
// not empty, initializers without inline data are filled from that
// SafeTensors file.
func Read(path, weightsPath string) (*Graph, error) {
	doc, err := serialization.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	var w *serialization.Weights
	if weightsPath != "" {
		if w, err = serialization.ReadSafeTensors(weightsPath); err != nil {
			return nil, err
		}
	}
	return serialization.ToGraph(doc, w)
}

// Write stores g as a document at path. When weightsPath is not empty the
// initializer payloads go to that SafeTensors file instead of the document.
func Write(g *Graph, path, weightsPath string) error {
	if weightsPath != "" {
		if err := serialization.WriteSafeTensors(weightsPath, g.Initializers(), nil); err != nil {
			return err
		}
	}
	return serialization.WriteDocument(path, serialization.FromGraph(g, weightsPath == ""))
}
