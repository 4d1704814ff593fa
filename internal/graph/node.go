package graph

import (
	"fmt"
	"maps"
	"slices"
)

// Operator kinds known to the optimizer. The set is open: loaders may create
// nodes with any OpType string.
const (
	OpInputData     = "InputData"
	OpConstant      = "Constant"
	OpConv          = "Conv"
	OpDepthwiseConv = "DepthwiseConv"
	OpGemm          = "Gemm"
	OpRelu          = "Relu"
	OpReshape       = "Reshape"
	OpAdd           = "Add"
	OpConcat        = "Concat"
	OpSoftmax       = "Softmax"
	OpFlatten       = "Flatten"
	OpTranspose     = "Transpose"
	OpMaxPool       = "MaxPool"
	OpAveragePool   = "AveragePool"
	OpFakeQuant     = "FakeQuant"
)

// Well-known attribute names.
const (
	AttrActivation   = "activation"
	AttrAxis         = "axis"
	AttrDataLayout   = "data_layout"
	AttrQuantMin     = "quant_min"
	AttrQuantMax     = "quant_max"
	AttrWeightsScale = "weights_scale"
	AttrInputsScale  = "inputs_scale"
)

// Fused activation codes stored in the activation attribute.
const (
	ActivationNone int64 = 0
	ActivationRelu int64 = 1
)

// Node is one operation in the graph. Edges are tensor names: every input and
// output must resolve to an initializer, a graph input or another node's output.
type Node struct {
	Name       string
	OpType     string
	Inputs     []string
	Outputs    []string
	Attributes map[string]Attribute
}

// NewNode creates a node with an empty attribute map.
func NewNode(name, opType string, inputs, outputs []string) *Node {
	return &Node{
		Name:       name,
		OpType:     opType,
		Inputs:     slices.Clone(inputs),
		Outputs:    slices.Clone(outputs),
		Attributes: make(map[string]Attribute),
	}
}

// IsConv reports whether the node is a (depthwise) convolution.
func (n *Node) IsConv() bool {
	return n.OpType == OpConv || n.OpType == OpDepthwiseConv
}

// SetInput rewrites input slot i.
func (n *Node) SetInput(i int, name string) error {
	if i < 0 || i >= len(n.Inputs) {
		return fmt.Errorf("node %q: input index %d out of range [0,%d): %w", n.Name, i, len(n.Inputs), ErrInvariant)
	}
	n.Inputs[i] = name
	return nil
}

// SetOutput rewrites output slot i.
func (n *Node) SetOutput(i int, name string) error {
	if i < 0 || i >= len(n.Outputs) {
		return fmt.Errorf("node %q: output index %d out of range [0,%d): %w", n.Name, i, len(n.Outputs), ErrInvariant)
	}
	n.Outputs[i] = name
	return nil
}

// SetAttribute sets or overwrites an attribute.
func (n *Node) SetAttribute(name string, value Attribute) {
	if n.Attributes == nil {
		n.Attributes = make(map[string]Attribute)
	}
	n.Attributes[name] = value.Clone()
}

// Attribute returns the named attribute.
func (n *Node) Attribute(name string) (Attribute, bool) {
	a, ok := n.Attributes[name]
	return a, ok
}

// HasInput reports whether any input slot references name.
func (n *Node) HasInput(name string) bool {
	return slices.Contains(n.Inputs, name)
}

// HasOutput reports whether any output slot references name.
func (n *Node) HasOutput(name string) bool {
	return slices.Contains(n.Outputs, name)
}

// Clone deep-copies the node.
func (n *Node) Clone() *Node {
	c := &Node{
		Name:       n.Name,
		OpType:     n.OpType,
		Inputs:     slices.Clone(n.Inputs),
		Outputs:    slices.Clone(n.Outputs),
		Attributes: make(map[string]Attribute, len(n.Attributes)),
	}
	for k, v := range n.Attributes {
		c.Attributes[k] = v.Clone()
	}
	return c
}

// AttributeNames returns attribute names in sorted order.
func (n *Node) AttributeNames() []string {
	return slices.Sorted(maps.Keys(n.Attributes))
}
