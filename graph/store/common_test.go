package store_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dshills/reviewloop/graph/store"
)

type testState struct {
	Headline  string   `json:"headline"`
	Issues    []string `json:"issues"`
	TurnCount int      `json:"turn_count"`
}

// runStoreContract exercises the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, st store.Store[testState]) {
	t.Helper()
	ctx := context.Background()
	runID := fmt.Sprintf("contract-%d", time.Now().UnixNano())

	t.Run("unknown run is not found", func(t *testing.T) {
		if _, _, err := st.LoadLatest(ctx, runID+"-missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("LoadLatest error = %v, want ErrNotFound", err)
		}
		if _, err := st.LoadSteps(ctx, runID+"-missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("LoadSteps error = %v, want ErrNotFound", err)
		}
	})

	t.Run("save and load steps in order", func(t *testing.T) {
		steps := []struct {
			node  string
			state testState
		}{
			{"supervisor", testState{TurnCount: 1}},
			{"planner", testState{Headline: "Exploring Go", TurnCount: 1}},
			{"supervisor", testState{Headline: "Exploring Go", TurnCount: 2}},
			{"reviewer", testState{Headline: "Exploring Go", Issues: []string{"a", "b"}, TurnCount: 2}},
		}
		// Save out of order to check ordering is by step number.
		order := []int{2, 0, 3, 1}
		for _, i := range order {
			if err := st.SaveStep(ctx, runID, i+1, steps[i].node, steps[i].state); err != nil {
				t.Fatalf("SaveStep(%d) failed: %v", i+1, err)
			}
		}

		records, err := st.LoadSteps(ctx, runID)
		if err != nil {
			t.Fatalf("LoadSteps failed: %v", err)
		}
		if len(records) != len(steps) {
			t.Fatalf("expected %d records, got %d", len(steps), len(records))
		}
		for i, record := range records {
			if record.Step != i+1 {
				t.Errorf("records[%d].Step = %d, want %d", i, record.Step, i+1)
			}
			if record.NodeID != steps[i].node {
				t.Errorf("records[%d].NodeID = %q, want %q", i, record.NodeID, steps[i].node)
			}
			if !reflect.DeepEqual(record.State, steps[i].state) {
				t.Errorf("records[%d].State = %+v, want %+v", i, record.State, steps[i].state)
			}
			if record.CreatedAt.IsZero() {
				t.Errorf("records[%d].CreatedAt is zero", i)
			}
		}

		state, step, err := st.LoadLatest(ctx, runID)
		if err != nil {
			t.Fatalf("LoadLatest failed: %v", err)
		}
		if step != 4 {
			t.Errorf("latest step = %d, want 4", step)
		}
		if !reflect.DeepEqual(state, steps[3].state) {
			t.Errorf("latest state = %+v, want %+v", state, steps[3].state)
		}
	})

	t.Run("saving a step twice replaces it", func(t *testing.T) {
		id := runID + "-replace"
		if err := st.SaveStep(ctx, id, 1, "supervisor", testState{TurnCount: 1}); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveStep(ctx, id, 1, "supervisor", testState{TurnCount: 7}); err != nil {
			t.Fatal(err)
		}
		records, err := st.LoadSteps(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 1 || records[0].State.TurnCount != 7 {
			t.Errorf("records = %+v, want single record with TurnCount 7", records)
		}
	})

	t.Run("runs are isolated", func(t *testing.T) {
		a, b := runID+"-a", runID+"-b"
		if err := st.SaveStep(ctx, a, 1, "supervisor", testState{TurnCount: 1}); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveStep(ctx, b, 1, "supervisor", testState{TurnCount: 5}); err != nil {
			t.Fatal(err)
		}
		sa, _, _ := st.LoadLatest(ctx, a)
		sb, _, _ := st.LoadLatest(ctx, b)
		if sa.TurnCount != 1 || sb.TurnCount != 5 {
			t.Errorf("cross-run leakage: a=%+v b=%+v", sa, sb)
		}
	})

	t.Run("concurrent writers", func(t *testing.T) {
		id := runID + "-concurrent"
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 1; i <= 10; i++ {
			wg.Add(1)
			go func(step int) {
				defer wg.Done()
				errs <- st.SaveStep(ctx, id, step, "supervisor", testState{TurnCount: step})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent SaveStep failed: %v", err)
			}
		}
		_, step, err := st.LoadLatest(ctx, id)
		if err != nil || step != 10 {
			t.Errorf("LoadLatest = step %d, err %v; want step 10", step, err)
		}
	})

	t.Run("list and delete runs", func(t *testing.T) {
		id := runID + "-listed"
		if err := st.SaveStep(ctx, id, 1, "supervisor", testState{TurnCount: 1}); err != nil {
			t.Fatal(err)
		}
		runs, err := st.Runs(ctx)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		if !slices.Contains(runs, id) || !slices.Contains(runs, runID) {
			t.Errorf("Runs() = %v, want it to contain %q and %q", runs, id, runID)
		}

		if err := st.Delete(ctx, id); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := st.LoadSteps(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("LoadSteps after Delete error = %v, want ErrNotFound", err)
		}
		runs, _ = st.Runs(ctx)
		if slices.Contains(runs, id) {
			t.Errorf("Runs() after Delete still contains %q", id)
		}
		if err := st.Delete(ctx, id); err != nil {
			t.Errorf("second Delete error = %v, want nil", err)
		}
	})
}
