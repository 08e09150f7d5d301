package emit

import (
	"sync"
	"testing"
)

func TestBufferedEmitter_History(t *testing.T) {
	emitter := NewBufferedEmitter()

	emitter.Emit(Event{RunID: "run-001", Msg: "run_start"})
	emitter.Emit(Event{RunID: "run-001", Step: 1, NodeID: "supervisor", Msg: "node_end"})
	emitter.Emit(Event{RunID: "run-002", Msg: "run_start"})
	emitter.Emit(Event{RunID: "run-001", Step: 1, NodeID: "supervisor", Msg: "route"})

	history := emitter.GetHistory("run-001")
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d", len(history))
	}
	wantMsgs := []string{"run_start", "node_end", "route"}
	for i, msg := range wantMsgs {
		if history[i].Msg != msg {
			t.Errorf("history[%d].Msg = %q, want %q", i, history[i].Msg, msg)
		}
	}

	if got := emitter.GetHistory("unknown"); got == nil || len(got) != 0 {
		t.Errorf("unknown run history = %v, want empty non-nil slice", got)
	}

	// Mutating the returned slice must not affect the buffer.
	history[0].Msg = "changed"
	if emitter.GetHistory("run-001")[0].Msg != "run_start" {
		t.Error("GetHistory returned shared storage")
	}
}

func TestBufferedEmitter_Filter(t *testing.T) {
	emitter := NewBufferedEmitter()
	for step, node := range []string{"supervisor", "planner", "supervisor", "reviewer", "supervisor"} {
		emitter.Emit(Event{RunID: "run", Step: step + 1, NodeID: node, Msg: "node_end"})
	}
	emitter.Emit(Event{RunID: "run", Step: 5, NodeID: "supervisor", Msg: "route"})

	two, four := 2, 4
	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"empty filter", HistoryFilter{}, 6},
		{"by node", HistoryFilter{NodeID: "supervisor"}, 4},
		{"by msg", HistoryFilter{Msg: "route"}, 1},
		{"node and msg", HistoryFilter{NodeID: "supervisor", Msg: "node_end"}, 3},
		{"min step", HistoryFilter{MinStep: &four}, 3},
		{"step range", HistoryFilter{MinStep: &two, MaxStep: &four}, 3},
		{"no match", HistoryFilter{NodeID: "nobody"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := emitter.GetHistoryWithFilter("run", tt.filter)
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestBufferedEmitter_Clear(t *testing.T) {
	emitter := NewBufferedEmitter()
	emitter.Emit(Event{RunID: "a", Msg: "x"})
	emitter.Emit(Event{RunID: "b", Msg: "x"})

	emitter.Clear("a")
	if len(emitter.GetHistory("a")) != 0 {
		t.Error("run a should be cleared")
	}
	if len(emitter.GetHistory("b")) != 1 {
		t.Error("run b should be kept")
	}
	if runs := emitter.Runs(); len(runs) != 1 || runs[0] != "b" {
		t.Errorf("Runs() = %v, want [b]", runs)
	}

	emitter.Clear("")
	if len(emitter.Runs()) != 0 {
		t.Error("Clear(\"\") should drop every run")
	}
}

func TestBufferedEmitter_Concurrent(t *testing.T) {
	emitter := NewBufferedEmitter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			emitter.Emit(Event{RunID: "run", Step: i, Msg: "node_end"})
			_ = emitter.GetHistory("run")
		}(i)
	}
	wg.Wait()

	if got := len(emitter.GetHistory("run")); got != 50 {
		t.Errorf("expected 50 events, got %d", got)
	}
}
