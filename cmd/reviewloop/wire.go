package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/reviewloop/agents"
	"github.com/dshills/reviewloop/graph"
	"github.com/dshills/reviewloop/graph/emit"
	"github.com/dshills/reviewloop/graph/model"
	"github.com/dshills/reviewloop/graph/model/anthropic"
	"github.com/dshills/reviewloop/graph/model/google"
	"github.com/dshills/reviewloop/graph/model/openai"
	"github.com/dshills/reviewloop/graph/store"
	"github.com/dshills/reviewloop/internal/config"
)

// spanOut receives exported spans when tracing is enabled.
var spanOut io.Writer = os.Stderr

// app holds everything an engine needs, built once per command from the
// configuration.
type app struct {
	cfg *config.Config

	store    store.Store[graph.State]
	registry *prometheus.Registry
	metrics  *graph.PrometheusMetrics
	emitter  emit.Emitter
	costs    *model.CostTracker
	tracer   *sdktrace.TracerProvider

	planner   graph.Node
	evaluator agents.Evaluator

	closers []io.Closer
}

// newApp wires the configured store, backend and observability. Engine
// events go to logOut when it is non-nil.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		costs:    model.NewCostTracker(),
	}
	a.metrics = graph.NewPrometheusMetrics(a.registry)

	st, closer, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = st
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	var emitters []emit.Emitter
	if logOut != nil {
		emitters = append(emitters, emit.NewLogEmitter(logOut, cfg.Log.Format == "json"))
	}
	if cfg.Telemetry.Tracing {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(spanOut))
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("failed to create span exporter: %w", err)
		}
		a.tracer = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		emitters = append(emitters, emit.NewOTelEmitter(a.tracer.Tracer("reviewloop")))
	}
	a.emitter = emit.NewMultiEmitter(emitters...)

	if err := a.buildAgents(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// engine builds an Engine with the configured budgets. A positive maxTurns
// overrides the configured turn budget, and the configured step ceiling with
// it. A non-zero maxSteps overrides the step ceiling; negative values are
// rejected by graph.New.
func (a *app) engine(maxTurns, maxSteps int) (*graph.Engine, error) {
	opts := []graph.Option{
		graph.WithStore(a.store),
		graph.WithEmitter(a.emitter),
		graph.WithMetrics(a.metrics),
		graph.WithNodeTimeout(a.cfg.Engine.NodeTimeout),
	}
	if maxTurns > 0 {
		opts = append(opts, graph.WithMaxTurns(maxTurns))
	} else {
		opts = append(opts, graph.WithMaxTurns(a.cfg.Engine.MaxTurns))
		if maxSteps == 0 && a.cfg.Engine.MaxSteps != 0 {
			opts = append(opts, graph.WithMaxSteps(a.cfg.Engine.MaxSteps))
		}
	}
	if maxSteps != 0 {
		opts = append(opts, graph.WithMaxSteps(maxSteps))
	}
	return graph.New(a.planner, agents.NewReviewer(a.evaluator), opts...)
}

// buildAgents selects the reference nodes or the LLM-backed ones.
func (a *app) buildAgents(ctx context.Context) error {
	p := a.cfg.Provider
	if p.Name == "reference" {
		a.planner = agents.NewPlanner()
		a.evaluator = agents.TurnCadence{
			Threshold:   a.cfg.Reviewer.Threshold,
			StrictExtra: a.cfg.Reviewer.StrictExtra,
		}
		return nil
	}

	key, err := a.cfg.APIKey()
	if err != nil {
		return err
	}

	var (
		chat      model.ChatModel
		modelName = p.Model
	)
	switch p.Name {
	case "anthropic":
		if modelName == "" {
			modelName = anthropic.DefaultModel
		}
		chat = anthropic.NewChatModel(key, modelName)
	case "openai":
		if modelName == "" {
			modelName = openai.DefaultModel
		}
		chat = openai.NewChatModel(key, modelName)
	case "google":
		if modelName == "" {
			modelName = google.DefaultModel
		}
		g, err := google.NewChatModel(ctx, key, modelName)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, g)
		chat = g
	default:
		return fmt.Errorf("unknown provider %q", p.Name)
	}

	a.planner = &agents.ModelPlanner{
		Model: model.Metered(chat, modelName, graph.NodePlanner.String(), a.costs),
	}
	a.evaluator = &agents.ModelEvaluator{
		Model: model.Metered(chat, modelName, graph.NodeReviewer.String(), a.costs),
	}
	return nil
}

// Close flushes spans and releases the store and model clients.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openStore opens the configured step store. The returned closer is nil for
// the memory store.
func openStore(cfg config.Store) (store.Store[graph.State], io.Closer, error) {
	switch cfg.Driver {
	case "memory", "":
		return store.NewMemStore[graph.State](), nil, nil
	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = "reviewloop.db"
		}
		st, err := store.NewSQLiteStore[graph.State](path)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case "mysql":
		st, err := store.NewMySQLStore[graph.State](cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case "redis":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "localhost:6379"
		}
		if !strings.HasPrefix(dsn, "redis://") && !strings.HasPrefix(dsn, "rediss://") {
			st := store.NewRedisStore[graph.State](dsn, cfg.Password, cfg.DB)
			return st, st, nil
		}
		st, err := store.NewRedisStoreFromURL[graph.State](dsn)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
