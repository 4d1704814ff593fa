package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate name")
	ErrInvariant  = errors.New("invariant violation")
	ErrStructural = errors.New("structural inconsistency")
)

// NotFoundError reports a by-name lookup with no match.
type NotFoundError struct {
	Kind string // "node", "initializer", "input", "output", ...
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// Edge is a single named connection of a node.
type Edge struct {
	Node   string // Node owning the slot
	Tensor string // Name referenced by the slot
	Output bool   // True for an output slot
}

// String renders the edge as node:input(tensor) or node:output(tensor).
func (e Edge) String() string {
	dir := "input"
	if e.Output {
		dir = "output"
	}
	return fmt.Sprintf("%s:%s(%s)", e.Node, dir, e.Tensor)
}

// StructuralError lists the edges that do not resolve after a mutation.
type StructuralError struct {
	Dangling []Edge
	Details  string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString("graph is inconsistent")
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	if len(e.Dangling) > 0 {
		b.WriteString(": dangling ")
		for i, edge := range e.Dangling {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(edge.String())
		}
	}
	return b.String()
}

// Unwrap lets errors.Is match ErrStructural.
func (e *StructuralError) Unwrap() error { return ErrStructural }
