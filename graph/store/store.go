// Package store provides persistence for correction-loop step history.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run ID has no persisted steps.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by durable stores after Close.
var ErrClosed = errors.New("store is closed")

// Store persists the merged state after every engine step.
//
// Implementations:
//   - MemStore: in-process maps, for tests and one-shot CLI runs
//   - SQLiteStore: single-file database (modernc.org/sqlite)
//   - MySQLStore: shared relational database
//   - RedisStore: shared key-value store
//
// Saving the same runID and step twice replaces the earlier record.
//
// Type parameter S is the state type to persist (must be JSON-serializable
// for the durable implementations).
type Store[S any] interface {
	// SaveStep persists the state produced by step (1-based) of runID.
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error

	// LoadLatest returns the state with the highest step number of runID,
	// or ErrNotFound.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// LoadSteps returns every step of runID ordered by step number, or
	// ErrNotFound.
	LoadSteps(ctx context.Context, runID string) ([]StepRecord[S], error)

	// Runs returns the IDs of every run with at least one step, most
	// recently updated first.
	Runs(ctx context.Context) ([]string, error)

	// Delete removes every step of runID. Deleting an unknown run is not an
	// error.
	Delete(ctx context.Context, runID string) error
}

// StepRecord is one persisted step.
type StepRecord[S any] struct {
	Step      int       `json:"step"`
	NodeID    string    `json:"node_id"`
	State     S         `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
