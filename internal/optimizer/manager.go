package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/logger"
)

// Manager runs passes strictly in insertion order. It stops at the first
// failing pass and leaves the graph as that pass left it; there is no
// rollback.
type Manager struct {
	passes   []Pass
	log      logger.Logger
	validate bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for pass progress.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithValidation toggles the referential-integrity check after every pass.
func WithValidation(enabled bool) Option {
	return func(m *Manager) { m.validate = enabled }
}

// NewManager returns an empty manager that validates after each pass.
func NewManager(opts ...Option) *Manager {
	m := &Manager{log: logger.Discard(), validate: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add appends passes.
func (m *Manager) Add(passes ...Pass) {
	m.passes = append(m.passes, passes...)
}

// Len returns the number of queued passes.
func (m *Manager) Len() int { return len(m.passes) }

// PassResult records one pass execution.
type PassResult struct {
	Pass        string        `json:"pass"`
	Detail      string        `json:"detail,omitempty"`
	Skipped     bool          `json:"skipped,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Duration    time.Duration `json:"duration"`
	NodesBefore int           `json:"nodes_before"`
	NodesAfter  int           `json:"nodes_after"`
}

// Run executes every pass against g. Passes reporting ErrNotApplicable are
// logged and skipped. Any other error aborts the run and is returned wrapped
// with the pass name, together with the results so far.
func (m *Manager) Run(ctx context.Context, g *graph.Graph) ([]PassResult, error) {
	results := make([]PassResult, 0, len(m.passes))
	for i, p := range m.passes {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := PassResult{Pass: p.Name(), NodesBefore: len(g.Nodes())}
		if s, ok := p.(fmt.Stringer); ok {
			res.Detail = s.String()
		}
		log := m.log.With("pass", p.Name(), "index", i)

		start := time.Now()
		err := p.Run(g)
		res.Duration = time.Since(start)
		res.NodesAfter = len(g.Nodes())

		switch {
		case errors.Is(err, ErrNotApplicable):
			res.Skipped = true
			res.Reason = err.Error()
			log.Debug("pass skipped", "detail", res.Detail, "reason", err)
			results = append(results, res)
			continue
		case err != nil:
			log.Error("pass failed", "detail", res.Detail, "error", err)
			return results, fmt.Errorf("pass %s: %w", p.Name(), err)
		}

		if m.validate {
			if err := g.Validate(); err != nil {
				log.Error("graph invalid after pass", "detail", res.Detail, "error", err)
				return results, fmt.Errorf("pass %s left graph invalid: %w", p.Name(), err)
			}
		}
		log.Info("pass done",
			"detail", res.Detail,
			"duration", res.Duration,
			"nodes_before", res.NodesBefore,
			"nodes_after", res.NodesAfter,
		)
		results = append(results, res)
	}
	return results, nil
}
