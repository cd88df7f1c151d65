package pipeline

import "github.com/briefops/research-agent/collector"

// State is the mutable record threaded through one pipeline execution.
// Every node reads the fields it needs and writes its results; the final
// state is returned to the caller with Response filled in.
type State struct {
	// UserMessage is the raw user input the router interprets.
	UserMessage string `json:"user_message"`

	// UserID attributes the run in the query log. Optional.
	UserID string `json:"user_id,omitempty"`

	// Source is the registry key currently selected for collection.
	Source string `json:"source"`

	// Query is the search string sent to the collector, as extracted or
	// refined by the router.
	Query string `json:"query"`

	// TriedSources lists every source collection was attempted against,
	// in order. TriedSources[0] is the router's original choice.
	TriedSources []string `json:"tried_sources"`

	Items []collector.Item `json:"items"`

	// Analysis is the synthesized briefing text.
	Analysis string `json:"analysis"`

	// Response is the final user-facing message.
	Response string `json:"response"`

	// Error holds the most recent collection failure, cleared when a
	// fallback source is selected.
	Error string `json:"error,omitempty"`

	// RetryCount counts fallback reroutes. retryExhausted marks a run
	// whose fallback chain ran dry before the cap.
	RetryCount int `json:"retry_count"`

	// Model optionally overrides the routing model for this run.
	Model string `json:"model,omitempty"`

	// AnalysisModel optionally overrides the analysis model for this run.
	// The response header attributes this model when set, the client's
	// default otherwise.
	AnalysisModel string `json:"analysis_model,omitempty"`
}

// retryExhausted is the RetryCount sentinel set when every fallback source
// has been tried.
const retryExhausted = 99

// maxRetries caps fallback reroutes per run.
const maxRetries = 2
