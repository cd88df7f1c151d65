package emit

// Emitter receives observability events from the orchestrator.
//
// Implementations must be safe for concurrent use: multiple pipeline
// executions may emit at the same time. Emit must never panic and must not
// block query execution; a slow or failing backend should drop events, not
// stall the pipeline.
type Emitter interface {
	Emit(event Event)
}

// NullEmitter discards all events. It is the default when no emitter is
// configured and is handy in tests that do not assert on events.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that does nothing.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}

// OrNull returns e, or a NullEmitter when e is nil. Components call this in
// their constructors so callers may pass nil.
func OrNull(e Emitter) Emitter {
	if e == nil {
		return NewNullEmitter()
	}
	return e
}
