package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// LogEmitter writes one line per event to a writer.
//
// Supports two output modes:
//   - Text mode (default): [msg] run_id=... step=N node=... key=value ...
//   - JSON mode: one JSON object per line (JSONL)
//
// Example text output:
//
//	[route] run_id=run-001 step=1 node=supervisor next=planner turn_count=1
//
// Example JSON output:
//
//	{"run_id":"run-001","step":1,"node":"supervisor","msg":"route","meta":{"next":"planner","turn_count":1}}
//
// Meta keys are written in sorted order so text output is stable.
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer selects os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes the event in the configured format.
func (l *LogEmitter) Emit(event Event) {
	var line string
	if l.jsonMode {
		line = formatJSON(event)
	} else {
		line = formatText(event)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.writer, line)
}

func formatJSON(event Event) string {
	data, err := json.Marshal(struct {
		RunID  string                 `json:"run_id"`
		Step   int                    `json:"step"`
		NodeID string                 `json:"node,omitempty"`
		Msg    string                 `json:"msg"`
		Meta   map[string]interface{} `json:"meta,omitempty"`
	}{
		RunID:  event.RunID,
		Step:   event.Step,
		NodeID: event.NodeID,
		Msg:    event.Msg,
		Meta:   event.Meta,
	})
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "failed to marshal event: "+err.Error())
	}
	return string(data)
}

func formatText(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] run_id=%s step=%d", event.Msg, event.RunID, event.Step)
	if event.NodeID != "" {
		fmt.Fprintf(&b, " node=%s", event.NodeID)
	}

	keys := make([]string, 0, len(event.Meta))
	for k := range event.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := event.Meta[k]
		if s, ok := v.(string); ok && strings.ContainsAny(s, " \t\"=") {
			fmt.Fprintf(&b, " %s=%q", k, s)
			continue
		}
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	return b.String()
}
