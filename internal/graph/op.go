package graph

import (
	"slices"

	"github.com/born-ml/graphopt/internal/tensor"
)

// Op is the lowered, per-kind view of a node that exporters consume. The
// graph keeps one Op per node and re-lowers it whenever the node changes.
type Op interface {
	OpName() string
	Kind() string
}

// InputData is a graph input placeholder.
type InputData struct {
	Name     string
	Shape    tensor.Shape
	DataType tensor.DataType
}

// Constant is an initializer materialized as an op.
type Constant struct {
	Name     string
	Shape    tensor.Shape
	Data     []float32
	DataType tensor.DataType
}

// Conv is a (depthwise) 2-D convolution with an optional fused activation.
type Conv struct {
	Name       string
	Inputs     []string
	Outputs    []string
	Depthwise  bool
	Activation int64
	Strides    []int64
	Pads       []int64
	Dilations  []int64
	Group      int64
}

// Gemm is a general matrix multiply.
type Gemm struct {
	Name    string
	Inputs  []string
	Outputs []string
	Alpha   float32
	Beta    float32
	TransA  bool
	TransB  bool
}

// Relu is a standalone rectifier.
type Relu struct {
	Name    string
	Inputs  []string
	Outputs []string
}

// Reshape changes the shape of its data input to the shape operand.
type Reshape struct {
	Name    string
	Inputs  []string
	Outputs []string
}

// Generic holds any node kind without a dedicated lowering.
type Generic struct {
	Name       string
	Type       string
	Inputs     []string
	Outputs    []string
	Attributes map[string]Attribute
}

func (o *InputData) OpName() string { return o.Name }
func (o *InputData) Kind() string   { return OpInputData }
func (o *Constant) OpName() string  { return o.Name }
func (o *Constant) Kind() string    { return OpConstant }
func (o *Conv) OpName() string      { return o.Name }
func (o *Gemm) OpName() string      { return o.Name }
func (o *Gemm) Kind() string        { return OpGemm }
func (o *Relu) OpName() string      { return o.Name }
func (o *Relu) Kind() string        { return OpRelu }
func (o *Reshape) OpName() string   { return o.Name }
func (o *Reshape) Kind() string     { return OpReshape }
func (o *Generic) OpName() string   { return o.Name }
func (o *Generic) Kind() string     { return o.Type }

// Kind returns Conv or DepthwiseConv.
func (o *Conv) Kind() string {
	if o.Depthwise {
		return OpDepthwiseConv
	}
	return OpConv
}

// Lower builds the per-kind representation of n.
func Lower(n *Node) Op {
	inputs := slices.Clone(n.Inputs)
	outputs := slices.Clone(n.Outputs)
	switch n.OpType {
	case OpConv, OpDepthwiseConv:
		return &Conv{
			Name:       n.Name,
			Inputs:     inputs,
			Outputs:    outputs,
			Depthwise:  n.OpType == OpDepthwiseConv,
			Activation: GetAttrInt(n, AttrActivation, ActivationNone),
			Strides:    slices.Clone(GetAttrInts(n, "strides", []int64{1, 1})),
			Pads:       slices.Clone(GetAttrInts(n, "pads", []int64{0, 0, 0, 0})),
			Dilations:  slices.Clone(GetAttrInts(n, "dilations", []int64{1, 1})),
			Group:      GetAttrInt(n, "group", 1),
		}
	case OpGemm:
		return &Gemm{
			Name:    n.Name,
			Inputs:  inputs,
			Outputs: outputs,
			Alpha:   GetAttrFloat(n, "alpha", 1),
			Beta:    GetAttrFloat(n, "beta", 1),
			TransA:  GetAttrInt(n, "transA", 0) != 0,
			TransB:  GetAttrInt(n, "transB", 0) != 0,
		}
	case OpRelu:
		return &Relu{Name: n.Name, Inputs: inputs, Outputs: outputs}
	case OpReshape:
		return &Reshape{Name: n.Name, Inputs: inputs, Outputs: outputs}
	default:
		attrs := make(map[string]Attribute, len(n.Attributes))
		for k, v := range n.Attributes {
			attrs[k] = v.Clone()
		}
		return &Generic{Name: n.Name, Type: n.OpType, Inputs: inputs, Outputs: outputs, Attributes: attrs}
	}
}
