package optimizer

import (
	"fmt"
	"slices"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/quant"
	"github.com/born-ml/graphopt/internal/tensor"
)

// Options parameterizes the built-in pass builders.
type Options struct {
	LayoutFrom tensor.Layout
	LayoutTo   tensor.Layout
	Quant      quant.Params
	Reshape    ReshapePredicate
}

// DefaultOptions converts nothing and quantizes to unsigned 8-bit.
func DefaultOptions() Options {
	return Options{
		LayoutFrom: tensor.NCHW,
		LayoutTo:   tensor.NCHW,
		Quant:      quant.DefaultParams(),
		Reshape:    NoopReshape,
	}
}

// Builder expands one pipeline entry into the concrete passes for g.
type Builder func(g *graph.Graph, opts Options) ([]Pass, error)

// Registry maps pipeline entry names to builders.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry returns a registry holding the built-in passes.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	r.Register(NameFuseRelu, buildFuseRelu)
	r.Register(NameRemoveReshape, buildRemoveReshape)
	r.Register(NameConvertLayout, buildConvertLayout)
	r.Register(NameQuantizeWeights, buildQuantizeWeights)
	return r
}

// Register adds or replaces a builder.
func (r *Registry) Register(name string, b Builder) {
	r.builders[name] = b
}

// Get returns the builder registered under name.
func (r *Registry) Get(name string) (Builder, bool) {
	b, ok := r.builders[name]
	return b, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build expands names in order against the current state of g. Every
// builder sees g as it is before any pass runs, so a pass never targets
// nodes that an earlier pass in the same pipeline exposes: with
// "remove_reshape,fuse_relu" a Conv -> Reshape -> Relu chain keeps its Relu.
// Build and run again to pick those up.
func (r *Registry) Build(g *graph.Graph, names []string, opts Options) ([]Pass, error) {
	var passes []Pass
	for _, name := range names {
		b, ok := r.builders[name]
		if !ok {
			return nil, fmt.Errorf("unknown pass %q (known: %v)", name, r.Names())
		}
		ps, err := b(g, opts)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		passes = append(passes, ps...)
	}
	return passes, nil
}

// buildFuseRelu targets every Relu whose input comes from convolutions only.
func buildFuseRelu(g *graph.Graph, _ Options) ([]Pass, error) {
	var passes []Pass
	for _, n := range g.Nodes() {
		if n.OpType != graph.OpRelu || len(n.Inputs) != 1 {
			continue
		}
		producers := g.Producers(n.Inputs[0])
		if len(producers) == 0 {
			continue
		}
		fusable := true
		for _, name := range producers {
			prod, err := g.Node(name)
			if err != nil {
				return nil, err
			}
			fusable = fusable && prod.IsConv()
		}
		if fusable {
			passes = append(passes, NewFuseRelu(n.Name))
		}
	}
	return passes, nil
}

func buildRemoveReshape(g *graph.Graph, opts Options) ([]Pass, error) {
	var passes []Pass
	for _, n := range g.Nodes() {
		if n.OpType == graph.OpReshape {
			passes = append(passes, NewRemoveReshape(n.Name, opts.Reshape))
		}
	}
	return passes, nil
}

func buildConvertLayout(_ *graph.Graph, opts Options) ([]Pass, error) {
	if opts.LayoutFrom == opts.LayoutTo {
		return nil, nil
	}
	return []Pass{NewConvertLayout(opts.LayoutFrom, opts.LayoutTo)}, nil
}

func buildQuantizeWeights(_ *graph.Graph, opts Options) ([]Pass, error) {
	return []Pass{NewQuantizeWeights(opts.Quant)}, nil
}
