package collector

// Item is the uniform record every collector emits; it is the lingua franca
// of the pipeline. Source and Title are always set; the other fields default
// to the empty string or an empty map.
type Item struct {
	// Source identifies the originating collector, e.g. "weather_wttr" or
	// "arxiv". It is a log label and need not match the registry key.
	Source string `json:"source"`

	// Title is a single-line human-readable title. Empty only when the
	// upstream truly has none.
	Title string `json:"title"`

	// Content is the free-text body, pre-formatted for human consumption.
	Content string `json:"content"`

	// URL is the canonical link, or "" when there is none.
	URL string `json:"url"`

	// PublishedAt is the upstream timestamp as an opaque string; no
	// normalization is applied.
	PublishedAt string `json:"published_at"`

	// Metadata holds collector-specific fields (stars, symbol, arxiv_id, ...).
	Metadata map[string]any `json:"metadata,omitempty"`
}
