// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the neural-network graph IR rewritten by the
// optimizer.
//
// # Overview
//
// A Graph owns nodes, initializer tensors and the graph inputs and outputs.
// Edges are tensor names: every node input resolves to an initializer, a
// graph input or another node's output. Accessors return copies; mutate a
// graph only through its Add, Remove and Update methods.
//
// # Basic Usage
//
//	g := graph.New("tiny")
//	_ = g.AddInput(&graph.ValueInfo{Name: "x", Dims: tensor.Shape{1, 3, 8, 8}})
//	w, _ := graph.NewTensor("w", tensor.Shape{4, 3, 1, 1}, tensor.Float32, data)
//	_ = g.AddInitializer(w)
//	_ = g.AddNode(graph.NewNode("conv", graph.OpConv, []string{"x", "w"}, []string{"c"}))
//	_ = g.AddNode(graph.NewNode("relu", graph.OpRelu, []string{"c"}, []string{"y"}))
//	_ = g.AddOutput(&graph.ValueInfo{Name: "y", Dims: tensor.Shape{1, 4, 8, 8}})
//
//	if err := g.Validate(); err != nil {
//	    var se *graph.StructuralError
//	    if errors.As(err, &se) {
//	        // se.Dangling lists unresolved edges
//	    }
//	}
//
// # Documents
//
// Read and Write load and store graphs as JSON or YAML documents, with
// optional SafeTensors files for initializer payloads.
package graph
