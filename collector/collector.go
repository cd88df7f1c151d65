// Package collector fetches research items from external data sources.
//
// Every source implements the Collector interface and produces the uniform
// Item record. A shared retry helper gives all collectors the same
// exponential-backoff discipline; the Registry maps source keys to
// constructors for the pipeline and scheduler.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/briefops/research-agent/emit"
)

// ErrMissingAPIKey is returned by collectors that require a credential the
// configuration does not provide.
var ErrMissingAPIKey = errors.New("missing API key")

// Collector maps a query string to a list of Items from one upstream.
//
// Collect performs the fetch and decode with per-attempt retry. An empty
// result is not an error at this layer; the pipeline treats it as a miss and
// falls back to another source. Close releases held network resources and
// must be called on every exit path.
type Collector interface {
	// Name is the collector's log identifier (not necessarily its
	// registry key).
	Name() string

	Collect(ctx context.Context, query string, opts Options) ([]Item, error)

	Close() error
}

// Options tunes a single Collect call. Collectors read the fields they
// understand and ignore the rest.
type Options struct {
	// Limit bounds the number of returned items. Zero means the
	// collector's own default.
	Limit int

	// Sort selects an upstream ordering where supported (reddit: "hot",
	// "new", "top"; arxiv: "relevance", "submittedDate").
	Sort string

	// Language narrows results where supported (news, github).
	Language string

	// Mode forces a collector-specific dispatch instead of inferring it
	// from the query (crypto: "trending"/"market").
	Mode string
}

// limitOr returns the configured limit, or def when unset.
func (o Options) limitOr(def int) int {
	if o.Limit > 0 {
		return o.Limit
	}
	return def
}

// base carries the name and retry parameters shared by every collector.
//
// retry runs fetch up to maxRetries times, sleeping baseDelay*2^attempt
// between attempts. The last error propagates after exhaustion. Empty
// results are returned as-is; retrying them is the pipeline's job, not ours.
type base struct {
	name       string
	maxRetries int
	baseDelay  time.Duration
	emitter    emit.Emitter
}

func newBase(name string, em emit.Emitter) base {
	return base{
		name:       name,
		maxRetries: 3,
		baseDelay:  time.Second,
		emitter:    emit.OrNull(em),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) retry(ctx context.Context, query string, fetch func(context.Context) ([]Item, error)) ([]Item, error) {
	var lastErr error
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		items, err := fetch(ctx)
		if err == nil {
			b.emitter.Emit(emit.Event{
				Stage:  "collector",
				Source: b.name,
				Msg:    "collection_success",
				Meta:   map[string]any{"query": query, "items": len(items)},
			})
			return items, nil
		}
		lastErr = err

		if attempt == b.maxRetries-1 {
			break
		}
		delay := b.baseDelay * (1 << attempt)
		b.emitter.Emit(emit.Event{
			Stage:  "collector",
			Source: b.name,
			Msg:    "collection_retry",
			Meta:   map[string]any{"query": query, "attempt": attempt + 1, "delay_ms": delay.Milliseconds()},
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	b.emitter.Emit(emit.Event{
		Stage:  "collector",
		Source: b.name,
		Msg:    "collection_failed",
		Meta:   map[string]any{"query": query, "error": lastErr.Error()},
	})
	return nil, lastErr
}
