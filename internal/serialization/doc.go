// Package serialization moves graphs and weights in and out of files.
//
// Graph structure travels as a graph document, JSON or YAML:
//
//	name: mnist
//	input_name: x
//	output_name: y
//	nodes:
//	  - name: conv1
//	    op_type: Conv
//	    inputs: [x, w1]
//	    outputs: [c1]
//	    attributes:
//	      strides: {ints: [1, 1]}
//	initializers:
//	  - {name: w1, dims: [8, 1, 3, 3], type: float32}
//	inputs:
//	  - {name: x, dims: [1, 1, 28, 28], type: float32}
//	outputs:
//	  - {name: y, dims: [1, 10], type: float32}
//
// Initializer payloads may be inlined as "data" or kept in a SafeTensors
// file:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON]
//	[tensor data: raw little-endian bytes]
//
// Only F32 payloads are read and written; the graph IR holds float32 data.
package serialization
