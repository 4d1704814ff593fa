// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optimizer provides in-place rewrites over graph.Graph.
//
// # Overview
//
// This package contains:
//   - Pass: one rewrite with a target-specific precondition
//   - FuseRelu, RemoveReshape, ConvertLayout, QuantizeWeights
//   - Manager: runs passes in order and validates between them
//   - Registry: expands pipeline names into passes for a given graph
//
// A pass whose precondition does not hold returns ErrNotApplicable and leaves
// the graph untouched; the Manager records it as skipped. Any other error
// stops the run. There is no rollback.
//
// # Basic Usage
//
//	results, err := optimizer.Optimize(ctx, g,
//	    []string{optimizer.NameRemoveReshape, optimizer.NameFuseRelu},
//	    optimizer.DefaultOptions())
//
// Passes can also be queued by hand:
//
//	m := optimizer.NewManager()
//	m.Add(optimizer.NewFuseRelu("relu1"))
//	results, err := m.Run(ctx, g)
package optimizer
