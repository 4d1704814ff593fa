package graph

import "fmt"

// graphEdgeOwner names graph outputs in StructuralError reports.
const graphEdgeOwner = "<graph>"

// Producers returns the names of nodes that list tensorName among their outputs.
func (g *Graph) Producers(tensorName string) []string {
	var out []string
	for _, n := range g.nodes {
		if n.HasOutput(tensorName) {
			out = append(out, n.Name)
		}
	}
	return out
}

// Consumers returns the names of nodes that list tensorName among their inputs.
func (g *Graph) Consumers(tensorName string) []string {
	var out []string
	for _, n := range g.nodes {
		if n.HasInput(tensorName) {
			out = append(out, n.Name)
		}
	}
	return out
}

// Resolves reports whether name is an initializer, a graph input or the
// output of some node.
func (g *Graph) Resolves(name string) bool {
	if _, ok := g.initIndex[name]; ok {
		return true
	}
	if _, ok := g.inputIndex[name]; ok {
		return true
	}
	for _, n := range g.nodes {
		if n.HasOutput(name) {
			return true
		}
	}
	return false
}

// Validate checks referential integrity: every node input resolves, no
// tensor has two producers, and every graph output is produced. Empty input
// names denote omitted optional inputs and are ignored.
func (g *Graph) Validate() error {
	produced := make(map[string]string)
	var dangling []Edge
	var details string

	for _, n := range g.nodes {
		for _, out := range n.Outputs {
			if out == "" {
				dangling = append(dangling, Edge{Node: n.Name, Output: true})
				continue
			}
			if prev, ok := produced[out]; ok && details == "" {
				details = fmt.Sprintf("tensor %q produced by both %q and %q", out, prev, n.Name)
			}
			produced[out] = n.Name
		}
	}

	available := func(name string) bool {
		if _, ok := produced[name]; ok {
			return true
		}
		if _, ok := g.initIndex[name]; ok {
			return true
		}
		_, ok := g.inputIndex[name]
		return ok
	}

	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if in != "" && !available(in) {
				dangling = append(dangling, Edge{Node: n.Name, Tensor: in})
			}
		}
	}
	for _, out := range g.outputs {
		if !available(out.Name) {
			dangling = append(dangling, Edge{Node: graphEdgeOwner, Tensor: out.Name, Output: true})
		}
	}

	if len(dangling) > 0 || details != "" {
		return &StructuralError{Dangling: dangling, Details: details}
	}
	return nil
}
