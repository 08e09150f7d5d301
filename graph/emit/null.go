package emit

// NullEmitter discards all events.
//
// Use it to disable event output without touching engine wiring.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit does nothing.
func (n *NullEmitter) Emit(event Event) {}
