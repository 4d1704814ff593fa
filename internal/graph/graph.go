package graph

import (
	"fmt"
	"slices"

	"github.com/born-ml/graphopt/internal/tensor"
)

// Graph owns every node, initializer and value info of one compiled model or
// subgraph. All mutation is by name. Name-to-position indexes are rebuilt
// inside the same call as the structural change they follow, so the primary
// collections remain the only source of truth.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	name       string
	inputName  string
	outputName string

	nodes         []*Node
	initializers  []*Tensor
	inputs        []*ValueInfo
	outputs       []*ValueInfo
	inputTensors  []*Tensor
	outputTensors []*Tensor

	nodeIndex   map[string]int
	initIndex   map[string]int
	inputIndex  map[string]int
	outputIndex map[string]int

	// Derived views kept for exporters. Mutations of the primary
	// collections update these in the same call.
	initNames map[string]struct{}
	lowered   map[string]Op
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{
		name:        name,
		nodeIndex:   make(map[string]int),
		initIndex:   make(map[string]int),
		inputIndex:  make(map[string]int),
		outputIndex: make(map[string]int),
		initNames:   make(map[string]struct{}),
		lowered:     make(map[string]Op),
	}
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// InputName returns the name of the primary graph input.
func (g *Graph) InputName() string { return g.inputName }

// OutputName returns the name of the primary graph output.
func (g *Graph) OutputName() string { return g.outputName }

// SetInputName records the primary graph input name.
func (g *Graph) SetInputName(name string) { g.inputName = name }

// SetOutputName records the primary graph output name.
func (g *Graph) SetOutputName(name string) { g.outputName = name }

// AddNode appends a copy of n.
func (g *Graph) AddNode(n *Node) error {
	if n.Name == "" {
		return fmt.Errorf("node of type %s has no name: %w", n.OpType, ErrInvariant)
	}
	if _, ok := g.nodeIndex[n.Name]; ok {
		return fmt.Errorf("node %q: %w", n.Name, ErrDuplicate)
	}
	c := n.Clone()
	g.nodes = append(g.nodes, c)
	g.nodeIndex[c.Name] = len(g.nodes) - 1
	g.lowered[c.Name] = Lower(c)
	return nil
}

// AddInitializer appends a copy of t after validating its payload.
func (g *Graph) AddInitializer(t *Tensor) error {
	if _, ok := g.initIndex[t.Name]; ok {
		return fmt.Errorf("initializer %q: %w", t.Name, ErrDuplicate)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	g.initializers = append(g.initializers, t.Clone())
	g.initIndex[t.Name] = len(g.initializers) - 1
	g.initNames[t.Name] = struct{}{}
	return nil
}

// AddInput appends a graph input.
func (g *Graph) AddInput(v *ValueInfo) error {
	if err := checkDims("input", v.Name, v.Dims); err != nil {
		return err
	}
	if _, ok := g.inputIndex[v.Name]; ok {
		return fmt.Errorf("input %q: %w", v.Name, ErrDuplicate)
	}
	g.inputs = append(g.inputs, v.Clone())
	g.inputIndex[v.Name] = len(g.inputs) - 1
	return nil
}

// AddOutput appends a graph output.
func (g *Graph) AddOutput(v *ValueInfo) error {
	if err := checkDims("output", v.Name, v.Dims); err != nil {
		return err
	}
	if _, ok := g.outputIndex[v.Name]; ok {
		return fmt.Errorf("output %q: %w", v.Name, ErrDuplicate)
	}
	g.outputs = append(g.outputs, v.Clone())
	g.outputIndex[v.Name] = len(g.outputs) - 1
	return nil
}

// AddInputTensor registers a runtime buffer for a graph input.
func (g *Graph) AddInputTensor(t *Tensor) error {
	if slices.ContainsFunc(g.inputTensors, byTensorName(t.Name)) {
		return fmt.Errorf("input tensor %q: %w", t.Name, ErrDuplicate)
	}
	g.inputTensors = append(g.inputTensors, t.Clone())
	return nil
}

// AddOutputTensor registers a runtime buffer for a graph output.
func (g *Graph) AddOutputTensor(t *Tensor) error {
	if slices.ContainsFunc(g.outputTensors, byTensorName(t.Name)) {
		return fmt.Errorf("output tensor %q: %w", t.Name, ErrDuplicate)
	}
	g.outputTensors = append(g.outputTensors, t.Clone())
	return nil
}

// Node returns a copy of the named node.
func (g *Graph) Node(name string) (*Node, error) {
	i, ok := g.nodeIndex[name]
	if !ok {
		return nil, notFound("node", name)
	}
	return g.nodes[i].Clone(), nil
}

// HasNode reports whether a node with the given name exists.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodeIndex[name]
	return ok
}

// GraphNode returns the lowered op of the named node.
func (g *Graph) GraphNode(name string) (Op, error) {
	op, ok := g.lowered[name]
	if !ok {
		return nil, notFound("graph node", name)
	}
	return op, nil
}

// InitializerTensor returns a copy of the named initializer.
func (g *Graph) InitializerTensor(name string) (*Tensor, error) {
	i, ok := g.initIndex[name]
	if !ok {
		return nil, notFound("initializer", name)
	}
	return g.initializers[i].Clone(), nil
}

// HasInitializer reports whether an initializer with the given name exists.
func (g *Graph) HasInitializer(name string) bool {
	_, ok := g.initIndex[name]
	return ok
}

// Input returns a copy of the named graph input.
func (g *Graph) Input(name string) (*ValueInfo, error) {
	i, ok := g.inputIndex[name]
	if !ok {
		return nil, notFound("input", name)
	}
	return g.inputs[i].Clone(), nil
}

// Output returns a copy of the named graph output.
func (g *Graph) Output(name string) (*ValueInfo, error) {
	i, ok := g.outputIndex[name]
	if !ok {
		return nil, notFound("output", name)
	}
	return g.outputs[i].Clone(), nil
}

// IsGraphOutput reports whether name is one of the graph outputs.
func (g *Graph) IsGraphOutput(name string) bool {
	_, ok := g.outputIndex[name]
	return ok
}

// RemoveInitializerTensor erases the named initializer and its entry in the
// initializer-name set.
func (g *Graph) RemoveInitializerTensor(name string) error {
	i, ok := g.initIndex[name]
	if !ok {
		return notFound("initializer", name)
	}
	g.initializers = slices.Delete(g.initializers, i, i+1)
	g.initIndex = indexTensors(g.initializers)
	delete(g.initNames, name)
	return nil
}

// RemoveInitializerName drops name from the initializer-name set only. The
// tensor, if any, is kept; loaders use this to reclassify a weight as a
// runtime input.
func (g *Graph) RemoveInitializerName(name string) error {
	if _, ok := g.initNames[name]; !ok {
		return notFound("initializer name", name)
	}
	delete(g.initNames, name)
	return nil
}

// RemoveNode erases the named node together with its lowered op.
func (g *Graph) RemoveNode(name string) error {
	i, ok := g.nodeIndex[name]
	if !ok {
		return notFound("node", name)
	}
	g.nodes = slices.Delete(g.nodes, i, i+1)
	g.nodeIndex = indexNodes(g.nodes)
	delete(g.lowered, name)
	return nil
}

// RemoveGraphNode drops the lowered op of name without touching the node
// list. RemoveNode already does this; calling both is safe but the second
// call reports NotFound.
func (g *Graph) RemoveGraphNode(name string) error {
	if _, ok := g.lowered[name]; !ok {
		return notFound("graph node", name)
	}
	delete(g.lowered, name)
	return nil
}

// RemoveInput erases the named graph input.
func (g *Graph) RemoveInput(name string) error {
	i, ok := g.inputIndex[name]
	if !ok {
		return notFound("input", name)
	}
	g.inputs = slices.Delete(g.inputs, i, i+1)
	g.inputIndex = indexValueInfos(g.inputs)
	return nil
}

// RemoveOutput erases the named graph output.
func (g *Graph) RemoveOutput(name string) error {
	i, ok := g.outputIndex[name]
	if !ok {
		return notFound("output", name)
	}
	g.outputs = slices.Delete(g.outputs, i, i+1)
	g.outputIndex = indexValueInfos(g.outputs)
	return nil
}

// UpdateNodeInputs rewrites input slot index of the named node.
func (g *Graph) UpdateNodeInputs(nodeName, inputName string, index int) error {
	n, err := g.node(nodeName)
	if err != nil {
		return err
	}
	if err := n.SetInput(index, inputName); err != nil {
		return err
	}
	g.lowered[nodeName] = Lower(n)
	return nil
}

// UpdateNodeOutputs rewrites output slot index of the named node.
func (g *Graph) UpdateNodeOutputs(nodeName, outputName string, index int) error {
	n, err := g.node(nodeName)
	if err != nil {
		return err
	}
	if err := n.SetOutput(index, outputName); err != nil {
		return err
	}
	g.lowered[nodeName] = Lower(n)
	return nil
}

// UpdateNodeAttribute sets or overwrites an attribute of the named node.
func (g *Graph) UpdateNodeAttribute(nodeName, attrName string, value Attribute) error {
	n, err := g.node(nodeName)
	if err != nil {
		return err
	}
	n.SetAttribute(attrName, value)
	g.lowered[nodeName] = Lower(n)
	return nil
}

// UpdateInitializerTensor replaces shape and payload of an existing
// initializer. The call fails without modifying anything when
// len(data) != product(dims).
func (g *Graph) UpdateInitializerTensor(name string, dims tensor.Shape, data []float32) error {
	i, ok := g.initIndex[name]
	if !ok {
		return notFound("initializer", name)
	}
	cur := g.initializers[i]
	next := &Tensor{Name: name, Dims: dims.Clone(), Type: cur.Type, Data: slices.Clone(data)}
	if err := next.Validate(); err != nil {
		return err
	}
	g.initializers[i] = next
	return nil
}

// UpdateInputTensors copies external buffers into the graph input tensors.
// Each matching tensor keeps its dims and takes the first product(dims)
// values of its buffer.
func (g *Graph) UpdateInputTensors(buffers map[string][]float32) error {
	return updateTensors(g.inputTensors, buffers)
}

// UpdateOutputTensors is the output-side counterpart of UpdateInputTensors.
func (g *Graph) UpdateOutputTensors(buffers map[string][]float32) error {
	return updateTensors(g.outputTensors, buffers)
}

// updateTensors is all or nothing: every buffer is checked before any copy.
func updateTensors(tensors []*Tensor, buffers map[string][]float32) error {
	for _, t := range tensors {
		buf, ok := buffers[t.Name]
		if !ok {
			continue
		}
		if n := t.Dims.NumElements(); len(buf) < n {
			return fmt.Errorf("tensor %q: buffer has %d values, dims %v need %d: %w",
				t.Name, len(buf), t.Dims, n, ErrInvariant)
		}
	}
	for _, t := range tensors {
		if buf, ok := buffers[t.Name]; ok {
			t.Data = slices.Clone(buf[:t.Dims.NumElements()])
		}
	}
	return nil
}

// UpdateInputs rewrites the shape of a graph input.
func (g *Graph) UpdateInputs(name string, dims tensor.Shape) error {
	i, ok := g.inputIndex[name]
	if !ok {
		return notFound("input", name)
	}
	if err := checkDims("input", name, dims); err != nil {
		return err
	}
	g.inputs[i].Dims = dims.Clone()
	return nil
}

// UpdateOutputs rewrites the shape of a graph output.
func (g *Graph) UpdateOutputs(name string, dims tensor.Shape) error {
	i, ok := g.outputIndex[name]
	if !ok {
		return notFound("output", name)
	}
	if err := checkDims("output", name, dims); err != nil {
		return err
	}
	g.outputs[i].Dims = dims.Clone()
	return nil
}

func checkDims(kind, name string, dims tensor.Shape) error {
	if err := dims.Validate(); err != nil {
		return fmt.Errorf("%s %q: %w: %v", kind, name, ErrInvariant, err)
	}
	return nil
}

// ReplaceInputTensor swaps the runtime buffer of a graph input.
func (g *Graph) ReplaceInputTensor(t *Tensor) error {
	return replaceTensor(g.inputTensors, t, "input tensor")
}

// ReplaceOutputTensor swaps the runtime buffer of a graph output.
func (g *Graph) ReplaceOutputTensor(t *Tensor) error {
	return replaceTensor(g.outputTensors, t, "output tensor")
}

func replaceTensor(tensors []*Tensor, t *Tensor, kind string) error {
	i := slices.IndexFunc(tensors, byTensorName(t.Name))
	if i < 0 {
		return notFound(kind, t.Name)
	}
	if t.Data != nil {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	tensors[i] = t.Clone()
	return nil
}

// Nodes returns copies of all nodes in graph order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Initializers returns copies of all initializers.
func (g *Graph) Initializers() []*Tensor { return cloneTensors(g.initializers) }

// InputTensors returns copies of the graph input buffers.
func (g *Graph) InputTensors() []*Tensor { return cloneTensors(g.inputTensors) }

// OutputTensors returns copies of the graph output buffers.
func (g *Graph) OutputTensors() []*Tensor { return cloneTensors(g.outputTensors) }

// Inputs returns copies of the graph inputs.
func (g *Graph) Inputs() []*ValueInfo { return cloneValueInfos(g.inputs) }

// Outputs returns copies of the graph outputs.
func (g *Graph) Outputs() []*ValueInfo { return cloneValueInfos(g.outputs) }

// InitializerNames returns the initializer-name set in sorted order.
func (g *Graph) InitializerNames() []string {
	names := make([]string, 0, len(g.initNames))
	for name := range g.initNames {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GraphNodes returns the lowered ops keyed by node name. The map is a copy;
// the ops themselves are rebuilt on every node mutation and never shared
// with the node list.
func (g *Graph) GraphNodes() map[string]Op {
	out := make(map[string]Op, len(g.lowered))
	for k, v := range g.lowered {
		out[k] = v
	}
	return out
}

// Clone deep-copies the graph.
func (g *Graph) Clone() *Graph {
	c := New(g.name)
	c.inputName = g.inputName
	c.outputName = g.outputName
	c.nodes = g.Nodes()
	c.initializers = g.Initializers()
	c.inputs = g.Inputs()
	c.outputs = g.Outputs()
	c.inputTensors = g.InputTensors()
	c.outputTensors = g.OutputTensors()
	c.nodeIndex = indexNodes(c.nodes)
	c.initIndex = indexTensors(c.initializers)
	c.inputIndex = indexValueInfos(c.inputs)
	c.outputIndex = indexValueInfos(c.outputs)
	for name := range g.initNames {
		c.initNames[name] = struct{}{}
	}
	for _, n := range c.nodes {
		if _, ok := g.lowered[n.Name]; ok {
			c.lowered[n.Name] = Lower(n)
		}
	}
	return c
}

// Summary reports collection sizes.
type Summary struct {
	Nodes        int
	Initializers int
	Inputs       int
	Outputs      int
	OpCounts     map[string]int
}

// Summary returns collection sizes and a per-op-type node count.
func (g *Graph) Summary() Summary {
	s := Summary{
		Nodes:        len(g.nodes),
		Initializers: len(g.initializers),
		Inputs:       len(g.inputs),
		Outputs:      len(g.outputs),
		OpCounts:     make(map[string]int),
	}
	for _, n := range g.nodes {
		s.OpCounts[n.OpType]++
	}
	return s
}

// node returns the owned node for in-place mutation.
func (g *Graph) node(name string) (*Node, error) {
	i, ok := g.nodeIndex[name]
	if !ok {
		return nil, notFound("node", name)
	}
	return g.nodes[i], nil
}

func byTensorName(name string) func(*Tensor) bool {
	return func(t *Tensor) bool { return t.Name == name }
}

func indexNodes(nodes []*Node) map[string]int {
	m := make(map[string]int, len(nodes))
	for i, n := range nodes {
		m[n.Name] = i
	}
	return m
}

func indexTensors(tensors []*Tensor) map[string]int {
	m := make(map[string]int, len(tensors))
	for i, t := range tensors {
		m[t.Name] = i
	}
	return m
}

func indexValueInfos(infos []*ValueInfo) map[string]int {
	m := make(map[string]int, len(infos))
	for i, v := range infos {
		m[v.Name] = i
	}
	return m
}

func cloneTensors(in []*Tensor) []*Tensor {
	out := make([]*Tensor, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

func cloneValueInfos(in []*ValueInfo) []*ValueInfo {
	out := make([]*ValueInfo, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}
