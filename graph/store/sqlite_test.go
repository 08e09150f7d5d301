package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dshills/reviewloop/graph/store"
)

var _ store.Store[testState] = (*store.SQLiteStore[testState])(nil)

func newTestSQLiteStore(t *testing.T) *store.SQLiteStore[testState] {
	t.Helper()
	st, err := store.NewSQLiteStore[testState](filepath.Join(t.TempDir(), "steps.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, newTestSQLiteStore(t))
}

func TestSQLiteStore_CloseAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	st, err := store.NewSQLiteStore[testState](path)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveStep(ctx, "run", 1, "supervisor", testState{TurnCount: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveStep(ctx, "run", 2, "planner", testState{Headline: "Exploring Go", TurnCount: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	reopened, err := store.NewSQLiteStore[testState](path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	state, step, err := reopened.LoadLatest(ctx, "run")
	if err != nil {
		t.Fatalf("LoadLatest after reopen failed: %v", err)
	}
	if step != 2 || state.Headline != "Exploring Go" {
		t.Errorf("got step %d state %+v", step, state)
	}
	if reopened.Path() != path {
		t.Errorf("Path() = %q, want %q", reopened.Path(), path)
	}
}

func TestSQLiteStore_ClosedStoreErrors(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)
	_ = st.Close()

	if err := st.SaveStep(ctx, "run", 1, "supervisor", testState{}); !errors.Is(err, store.ErrClosed) {
		t.Errorf("SaveStep error = %v, want ErrClosed", err)
	}
	if _, _, err := st.LoadLatest(ctx, "run"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("LoadLatest error = %v, want ErrClosed", err)
	}
	if _, err := st.LoadSteps(ctx, "run"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("LoadSteps error = %v, want ErrClosed", err)
	}
}
