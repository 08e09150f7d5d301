// Package emit provides the event emitters the engine reports runs through.
package emit

// Emitter receives observability events from a correction-loop run.
//
// The engine calls Emit synchronously between steps, so implementations
// should return quickly and must be safe for concurrent use: one Emitter is
// usually shared by every run of an Engine.
//
// Emit should not panic. Backend failures are the emitter's own concern.
type Emitter interface {
	Emit(event Event)
}

// MultiEmitter fans every event out to a fixed list of emitters, in order.
//
// Example:
//
//	emitter := emit.NewMultiEmitter(
//	    emit.NewLogEmitter(os.Stderr, false),
//	    emit.NewOTelEmitter(otel.Tracer("reviewloop")),
//	)
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates a MultiEmitter. Nil entries are skipped.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit forwards the event to every wrapped emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
