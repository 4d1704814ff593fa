// Package graph implements the in-memory IR used by the optimizer: nodes
// connected by tensor names, initializer tensors, and value infos describing
// graph inputs and outputs.
//
// Key components:
//   - Node: one operation (Conv, Relu, Reshape, ...) with ordered input and
//     output names and a map of small variant attributes
//   - Tensor: a named initializer with dims and a flat float payload
//   - ValueInfo: shape and type of a graph input or output, without data
//   - Op: the lowered per-kind view of a node (Conv, Gemm, Relu, ...)
//   - Graph: owner of all of the above, with by-name lookup and mutation
//
// Every lookup that misses returns a *NotFoundError (errors.Is(err,
// ErrNotFound)). Validate reports dangling edges as a *StructuralError.
//
// Example usage:
//
//	g := graph.New("mobilenet")
//	_ = g.AddInput(&graph.ValueInfo{Name: "x", Dims: tensor.Shape{1, 3, 224, 224}})
//	_ = g.AddNode(graph.NewNode("conv1", graph.OpConv, []string{"x", "w"}, []string{"y"}))
//	if err := g.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package graph
