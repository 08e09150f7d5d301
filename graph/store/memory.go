package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store[S].
//
// MemStore is thread-safe. Data is lost when the process exits.
type MemStore[S any] struct {
	mu    sync.RWMutex
	steps map[string]map[int]StepRecord[S] // runID -> step -> record
	touch map[string]uint64                // runID -> write sequence
	seq   uint64
	now   func() time.Time
}

// NewMemStore creates a new in-memory store.
//
// Example:
//
//	st := store.NewMemStore[graph.State]()
//	engine, _ := graph.New(planner, reviewer, graph.WithStore(st))
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps: make(map[string]map[int]StepRecord[S]),
		touch: make(map[string]uint64),
		now:   time.Now,
	}
}

// SaveStep stores the step, replacing any earlier record with the same number.
func (m *MemStore[S]) SaveStep(_ context.Context, runID string, step int, nodeID string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.steps[runID]
	if !ok {
		run = make(map[int]StepRecord[S])
		m.steps[runID] = run
	}
	run[step] = StepRecord[S]{
		Step:      step,
		NodeID:    nodeID,
		State:     state,
		CreatedAt: m.now(),
	}
	m.seq++
	m.touch[runID] = m.seq
	return nil
}

// LoadLatest returns the record with the highest step number.
func (m *MemStore[S]) LoadLatest(_ context.Context, runID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.steps[runID]
	if !ok || len(run) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}

	var latest StepRecord[S]
	for _, record := range run {
		if record.Step > latest.Step {
			latest = record
		}
	}
	return latest.State, latest.Step, nil
}

// LoadSteps returns every record of runID in step order.
func (m *MemStore[S]) LoadSteps(_ context.Context, runID string) ([]StepRecord[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.steps[runID]
	if !ok || len(run) == 0 {
		return nil, ErrNotFound
	}

	records := make([]StepRecord[S], 0, len(run))
	for _, record := range run {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Step < records[j].Step })
	return records, nil
}

// Runs returns the IDs of every run with at least one step, most recently
// written first.
func (m *MemStore[S]) Runs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.steps))
	for id := range m.steps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.touch[ids[i]] > m.touch[ids[j]] })
	return ids, nil
}

// Delete drops every step of runID.
func (m *MemStore[S]) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.steps, runID)
	delete(m.touch, runID)
	return nil
}
