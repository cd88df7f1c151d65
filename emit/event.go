// Package emit provides observability events for query execution.
//
// Every stage of a pipeline run, every collector retry, and every scheduler
// wake emits an Event through an Emitter. Emitters are pluggable backends:
//   - LogEmitter: structured text or JSONL to an io.Writer
//   - OTelEmitter: OpenTelemetry spans
//   - NullEmitter: discard everything
package emit

// Event is a single observability record from the orchestrator.
type Event struct {
	// RunID identifies the pipeline execution (or scheduler fire) that
	// emitted this event. Empty for process-level events.
	RunID string

	// Stage names the pipeline stage or component that emitted the event:
	// "route", "collect", "retry", "analyze", "respond", "scheduler",
	// "collector", "store".
	Stage string

	// Source is the collector key involved, when one is ("weather",
	// "arxiv", ...). Empty otherwise.
	Source string

	// Msg is the event name, e.g. "collect_retry" or "scheduler_triggered".
	Msg string

	// Meta carries event-specific structured data. Common keys:
	//   - "error": error text
	//   - "attempt": retry attempt number
	//   - "items": item count
	//   - "duration_ms": elapsed milliseconds
	Meta map[string]any
}
