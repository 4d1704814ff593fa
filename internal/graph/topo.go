package graph

// TopologicalOrder returns node names in execution order: every node comes
// after the producers of its inputs. Graph order is kept where it already
// satisfies that. Cycles do not loop; the node closing a cycle is emitted
// where the walk first reaches it.
func (g *Graph) TopologicalOrder() []string {
	// Build output-to-node map
	outputToNode := make(map[string]int)
	for i, n := range g.nodes {
		for _, output := range n.Outputs {
			outputToNode[output] = i
		}
	}

	visited := make([]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true

		// Visit dependencies first
		for _, input := range g.nodes[i].Inputs {
			if depIdx, ok := outputToNode[input]; ok {
				visit(depIdx)
			}
		}

		result = append(result, g.nodes[i].Name)
	}

	for i := range g.nodes {
		visit(i)
	}
	return result
}

// SortNodes reorders the node list into TopologicalOrder.
func (g *Graph) SortNodes() {
	order := g.TopologicalOrder()
	sorted := make([]*Node, len(order))
	for i, name := range order {
		sorted[i] = g.nodes[g.nodeIndex[name]]
	}
	g.nodes = sorted
	g.nodeIndex = indexNodes(g.nodes)
}
