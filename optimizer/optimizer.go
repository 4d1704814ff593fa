// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optimizer

import (
	"context"
	"log/slog"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/logger"
	"github.com/born-ml/graphopt/internal/optimizer"
	"github.com/born-ml/graphopt/internal/quant"
	"github.com/born-ml/graphopt/internal/tensor"
)

// Pass is one in-place graph rewrite.
type Pass = optimizer.Pass

// ErrNotApplicable marks a pass whose preconditions do not hold.
var ErrNotApplicable = optimizer.ErrNotApplicable

// Pass names.
const (
	NameFuseRelu        = optimizer.NameFuseRelu
	NameRemoveReshape   = optimizer.NameRemoveReshape
	NameConvertLayout   = optimizer.NameConvertLayout
	NameQuantizeWeights = optimizer.NameQuantizeWeights
)

// Passes

// FuseRelu folds a Relu into the node producing its input.
type FuseRelu = optimizer.FuseRelu

// NewFuseRelu targets the Relu node named target.
func NewFuseRelu(target string) *FuseRelu {
	return optimizer.NewFuseRelu(target)
}

// ReshapePredicate decides whether a Reshape can be removed.
type ReshapePredicate = optimizer.ReshapePredicate

// NoopReshape accepts reshapes whose known input shape already equals the
// target shape.
var NoopReshape ReshapePredicate = optimizer.NoopReshape

// RemoveReshape deletes a Reshape and rewires its consumers.
type RemoveReshape = optimizer.RemoveReshape

// NewRemoveReshape targets the Reshape named target. A nil pred means
// NoopReshape.
func NewRemoveReshape(target string, pred ReshapePredicate) *RemoveReshape {
	return optimizer.NewRemoveReshape(target, pred)
}

// ConvertLayout permutes 4-D activations and convolution weights between
// layouts.
type ConvertLayout = optimizer.ConvertLayout

// NewConvertLayout converts from one layout to another.
func NewConvertLayout(from, to tensor.Layout) *ConvertLayout {
	return optimizer.NewConvertLayout(from, to)
}

// QuantizeWeights fake-quantizes weight initializers per output channel.
type QuantizeWeights = optimizer.QuantizeWeights

// NewQuantizeWeights quantizes with params; the tensor type is forced to
// weight.
func NewQuantizeWeights(params quant.Params) *QuantizeWeights {
	return optimizer.NewQuantizeWeights(params)
}

// Manager

// Manager runs passes in insertion order.
type Manager = optimizer.Manager

// Option configures a Manager.
type Option = optimizer.Option

// PassResult records one pass execution.
type PassResult = optimizer.PassResult

// NewManager returns an empty manager that validates after each pass.
func NewManager(opts ...Option) *Manager {
	return optimizer.NewManager(opts...)
}

// WithLogHandler routes pass progress to h.
func WithLogHandler(h slog.Handler) Option {
	return optimizer.WithLogger(logger.New(h))
}

// WithValidation toggles validation after every pass.
func WithValidation(enabled bool) Option {
	return optimizer.WithValidation(enabled)
}

// Registry

// Options parameterizes the built-in pass builders.
type Options = optimizer.Options

// Builder expands one pipeline entry into passes.
type Builder = optimizer.Builder

// Registry maps pipeline entry names to builders.
type Registry = optimizer.Registry

// DefaultOptions converts nothing and quantizes to unsigned 8-bit.
func DefaultOptions() Options {
	return optimizer.DefaultOptions()
}

// NewRegistry returns a registry holding the built-in passes.
func NewRegistry() *Registry {
	return optimizer.NewRegistry()
}

// Optimize builds the named pipeline for g with the built-in registry and
// runs it.
func Optimize(ctx context.Context, g *graph.Graph, names []string, opts Options, mopts ...Option) ([]PassResult, error) {
	passes, err := optimizer.NewRegistry().Build(g, names, opts)
	if err != nil {
		return nil, err
	}
	m := optimizer.NewManager(mopts...)
	m.Add(passes...)
	return m.Run(ctx, g)
}
