package graph

import (
	"time"

	"github.com/dshills/reviewloop/graph/emit"
	"github.com/dshills/reviewloop/graph/store"
)

// Options holds the loop budgets of an Engine.
type Options struct {
	// MaxTurns bounds the correction loop. Route ends a rejected run once
	// TurnCount reaches it. Must be positive.
	MaxTurns int

	// MaxSteps is a hard ceiling on executed steps, independent of MaxTurns.
	// Exceeding it fails the run with ErrMaxStepsExceeded. Zero selects
	// DefaultMaxSteps(MaxTurns).
	MaxSteps int

	// NodeTimeout bounds a single node execution. Zero means unlimited.
	NodeTimeout time.Duration
}

// DefaultMaxSteps returns the step ceiling used when none is configured.
//
// A run that obeys Route needs at most 2*maxTurns+2 steps once maxTurns >= 2,
// and 5 steps for the unconditional first plan/review cycle. The default
// leaves headroom over both.
func DefaultMaxSteps(maxTurns int) int {
	return 2*maxTurns + 5
}

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := graph.New(planner, reviewer,
//	    graph.WithMaxTurns(3),
//	    graph.WithStore(store.NewMemStore[graph.State]()),
//	    graph.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	)
type Option func(*engineConfig) error

type engineConfig struct {
	opts       Options
	maxStepSet bool
	store      store.Store[State]
	emitter    emit.Emitter
	metrics    *PrometheusMetrics
}

// WithMaxTurns sets the turn budget of the correction loop.
//
// Default: DefaultMaxTurns. Values <= 0 are rejected by New.
func WithMaxTurns(n int) Option {
	return func(cfg *engineConfig) error {
		if n <= 0 {
			return configError("max turns must be positive")
		}
		cfg.opts.MaxTurns = n
		return nil
	}
}

// WithMaxSteps sets the hard step ceiling.
//
// Default: DefaultMaxSteps(maxTurns). Values <= 0 are rejected by New.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		if n <= 0 {
			return configError("max steps must be positive")
		}
		cfg.opts.MaxSteps = n
		cfg.maxStepSet = true
		return nil
	}
}

// WithOptions applies a whole Options value. Zero fields keep their defaults.
func WithOptions(opts Options) Option {
	return func(cfg *engineConfig) error {
		if opts.MaxTurns < 0 || opts.MaxSteps < 0 {
			return configError("budgets must not be negative")
		}
		if opts.MaxTurns > 0 {
			cfg.opts.MaxTurns = opts.MaxTurns
		}
		if opts.MaxSteps > 0 {
			cfg.opts.MaxSteps = opts.MaxSteps
			cfg.maxStepSet = true
		}
		if opts.NodeTimeout < 0 {
			return configError("node timeout must not be negative")
		}
		if opts.NodeTimeout > 0 {
			cfg.opts.NodeTimeout = opts.NodeTimeout
		}
		return nil
	}
}

// WithNodeTimeout bounds each node execution. A node that overruns fails the
// run with a NodeError carrying CodeNodeTimeout. Nodes are not retried.
//
// Default: 0 (unlimited). Negative values are rejected by New.
func WithNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return configError("node timeout must not be negative")
		}
		cfg.opts.NodeTimeout = d
		return nil
	}
}

// WithStore persists the merged state after every step.
func WithStore(st store.Store[State]) Option {
	return func(cfg *engineConfig) error {
		cfg.store = st
		return nil
	}
}

// WithEmitter sends run and step events to the given emitter.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		cfg.emitter = emitter
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	engine, _ := graph.New(planner, reviewer,
//	    graph.WithMetrics(graph.NewPrometheusMetrics(registry)),
//	)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = metrics
		return nil
	}
}
