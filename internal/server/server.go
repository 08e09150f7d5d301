// Package server exposes the correction loop over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/reviewloop/graph"
	"github.com/dshills/reviewloop/graph/store"
)

// EngineFactory builds an Engine for one request. maxTurns and maxSteps are
// 0 when the request does not override the configured budgets.
type EngineFactory func(maxTurns, maxSteps int) (*graph.Engine, error)

// Server serves run requests and persisted step history.
type Server struct {
	NewEngine EngineFactory

	// Store backs the run history routes. It should be the store the engines
	// persist to.
	Store store.Store[graph.State]
}

// RunRequest is the body of POST /v1/runs.
type RunRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Email    string `json:"email"`
	Task     string `json:"task"`
	Strict   bool   `json:"strict"`
	MaxTurns *int   `json:"max_turns,omitempty"`
	MaxSteps *int   `json:"max_steps,omitempty"`
}

// RunResult is the response of a completed run.
type RunResult struct {
	RunID     string         `json:"run_id"`
	Outcome   graph.Outcome  `json:"outcome"`
	TurnCount int            `json:"turn_count"`
	Approved  bool           `json:"approved"`
	Proposal  graph.Proposal `json:"proposal"`
	Feedback  graph.Feedback `json:"feedback"`
	State     graph.State    `json:"state"`
}

// RunSummary is the latest persisted step of a run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Step      int           `json:"step"`
	TurnCount int           `json:"turn_count"`
	Outcome   graph.Outcome `json:"outcome"`
	State     graph.State   `json:"state"`
}

// StreamLine is one NDJSON line of a streamed run. Exactly one field is set.
type StreamLine struct {
	Step   *graph.Step `json:"step,omitempty"`
	Result *RunResult  `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewHandler creates the HTTP handler. gatherer serves /metrics and may be
// nil to disable the endpoint.
func NewHandler(s *Server, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.CreateRun)
		r.Get("/", s.ListRuns)
		r.Get("/{runID}", s.GetRun)
		r.Delete("/{runID}", s.DeleteRun)
		r.Get("/{runID}/steps", s.GetSteps)
	})
	return r
}

// CreateRun handles POST /v1/runs. With ?stream=true the steps are written
// as NDJSON while the run progresses.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	maxTurns := 0
	if body.MaxTurns != nil {
		if *body.MaxTurns <= 0 {
			http.Error(w, "max_turns must be positive", http.StatusUnprocessableEntity)
			return
		}
		maxTurns = *body.MaxTurns
	}
	maxSteps := 0
	if body.MaxSteps != nil {
		if *body.MaxSteps <= 0 {
			http.Error(w, "max_steps must be positive", http.StatusUnprocessableEntity)
			return
		}
		maxSteps = *body.MaxSteps
	}

	engine, err := s.NewEngine(maxTurns, maxSteps)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrInvalidConfig) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, fmt.Sprintf("Engine error: %v", err), status)
		return
	}

	runID := uuid.NewString()
	initial := graph.NewState(body.Title, body.Content, body.Email, body.Task, body.Strict)

	if r.URL.Query().Get("stream") == "true" {
		s.streamRun(w, r, engine, runID, initial)
		return
	}

	final, err := engine.Run(r.Context(), runID, initial)
	if err != nil {
		http.Error(w, fmt.Sprintf("Run error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newResult(runID, final)); err != nil {
		fmt.Printf("CreateRun encode error: %v\n", err)
	}
}

func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, engine *graph.Engine, runID string, initial graph.State) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	var final graph.State
	for step, err := range engine.Stream(r.Context(), runID, initial) {
		if err != nil {
			_ = enc.Encode(StreamLine{Error: err.Error()})
			flusher.Flush()
			return
		}
		final = step.State
		if err := enc.Encode(StreamLine{Step: &step}); err != nil {
			// Client went away; breaking abandons the run.
			return
		}
		flusher.Flush()
	}

	result := newResult(runID, final)
	_ = enc.Encode(StreamLine{Result: &result})
	flusher.Flush()
}

// ListRuns handles GET /v1/runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}

	runs, err := s.Store.Runs(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Store error: %v", err), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]string{"runs": runs}); err != nil {
		fmt.Printf("ListRuns encode error: %v\n", err)
	}
}

// GetRun handles GET /v1/runs/{runID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}

	runID := chi.URLParam(r, "runID")
	state, step, err := s.Store.LoadLatest(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("Run %q not found", runID), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Store error: %v", err), http.StatusInternalServerError)
		return
	}

	summary := RunSummary{
		RunID:     runID,
		Step:      step,
		TurnCount: state.TurnCount,
		Outcome:   graph.OutcomeOf(state),
		State:     state,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		fmt.Printf("GetRun encode error: %v\n", err)
	}
}

// DeleteRun handles DELETE /v1/runs/{runID}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}

	runID := chi.URLParam(r, "runID")
	if _, _, err := s.Store.LoadLatest(r.Context(), runID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("Run %q not found", runID), http.StatusNotFound)
		return
	}
	if err := s.Store.Delete(r.Context(), runID); err != nil {
		http.Error(w, fmt.Sprintf("Store error: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSteps handles GET /v1/runs/{runID}/steps.
func (s *Server) GetSteps(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}

	runID := chi.URLParam(r, "runID")
	records, err := s.Store.LoadSteps(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("Run %q not found", runID), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Store error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		fmt.Printf("GetSteps encode error: %v\n", err)
	}
}

func (s *Server) historyEnabled(w http.ResponseWriter) bool {
	if s.Store == nil {
		http.Error(w, "Step history is not enabled", http.StatusNotFound)
		return false
	}
	return true
}

func newResult(runID string, final graph.State) RunResult {
	return RunResult{
		RunID:     runID,
		Outcome:   graph.OutcomeOf(final),
		TurnCount: final.TurnCount,
		Approved:  final.Feedback.Approved,
		Proposal:  final.Proposal,
		Feedback:  final.Feedback,
		State:     final,
	}
}
