// Package pipeline executes the research workflow: route a user message to
// a data source, collect items, reroute through fallback sources on misses,
// synthesize an analysis, and format the final response.
//
// The workflow is an explicit node loop over a shared State. Conditional
// hops (collect either proceeds to analyze or loops through retry) are
// ordinary branches in each node's "next node" return value, which keeps
// the control flow inspectable in one screen of code.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/briefops/research-agent/collector"
	"github.com/briefops/research-agent/emit"
	"github.com/briefops/research-agent/llm"
	"github.com/briefops/research-agent/store"
)

// Node identifiers.
const (
	nodeRoute   = "route"
	nodeCollect = "collect"
	nodeRetry   = "retry"
	nodeAnalyze = "analyze"
	nodeRespond = "respond"
	nodeEnd     = "end"
)

// maxResponseLen is the hard cap on the final response, matching the
// Telegram message limit.
const maxResponseLen = 4096

// collectLimit is the default number of items requested per collection.
const defaultCollectLimit = 5

// SourceProvider hands out collectors by registry key. *collector.Registry
// satisfies it; tests inject fakes.
type SourceProvider interface {
	Get(name string) (collector.Collector, error)
	Has(name string) bool
	Sources() []string
}

// QueryLog records completed runs. Failures are logged and swallowed; the
// pipeline never fails a run over bookkeeping.
type QueryLog interface {
	LogQuery(ctx context.Context, rec store.QueryRecord) error
}

// Request starts one pipeline run. When both Source and Query are preset
// (slash commands, the scheduler) the router skips its LLM call. Model and
// AnalysisModel are per-call overrides of the configured routing and
// analysis models; empty means the configured default.
type Request struct {
	UserMessage   string
	UserID        string
	Source        string
	Query         string
	Model         string
	AnalysisModel string
}

// Pipeline wires the LLM client, source registry, and sinks into a runnable
// workflow. Safe for concurrent Run calls.
type Pipeline struct {
	llm          llm.Client
	sources      SourceProvider
	queryLog     QueryLog
	emitter      emit.Emitter
	metrics      *Metrics
	routingModel string
	collectLimit int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithQueryLog records completed runs to the store.
func WithQueryLog(log QueryLog) Option {
	return func(p *Pipeline) { p.queryLog = log }
}

// WithEmitter attaches an event emitter for run observability.
func WithEmitter(em emit.Emitter) Option {
	return func(p *Pipeline) { p.emitter = em }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRoutingModel sets a distinct (typically smaller) model for routing
// calls. The client's default model is used when empty.
func WithRoutingModel(model string) Option {
	return func(p *Pipeline) { p.routingModel = model }
}

// WithCollectLimit overrides the per-collection item limit.
func WithCollectLimit(limit int) Option {
	return func(p *Pipeline) {
		if limit > 0 {
			p.collectLimit = limit
		}
	}
}

// New returns a Pipeline over the given LLM client and source registry.
func New(client llm.Client, sources SourceProvider, opts ...Option) *Pipeline {
	p := &Pipeline{
		llm:          client,
		sources:      sources,
		collectLimit: defaultCollectLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.emitter = emit.OrNull(p.emitter)
	return p
}

// Run executes the workflow to completion and returns the final State. The
// returned error is non-nil only for context cancellation; domain failures
// (unreachable sources, LLM errors) degrade into the Response instead.
func (p *Pipeline) Run(ctx context.Context, req Request) (*State, error) {
	runID := newRunID()
	state := &State{
		UserMessage:   req.UserMessage,
		UserID:        req.UserID,
		Source:        req.Source,
		Query:         req.Query,
		Model:         req.Model,
		AnalysisModel: req.AnalysisModel,
	}

	node := nodeRoute
	for node != nodeEnd {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		start := time.Now()
		current := node
		switch node {
		case nodeRoute:
			node = p.route(ctx, runID, state)
		case nodeCollect:
			node = p.collect(ctx, runID, state)
		case nodeRetry:
			node = p.retry(runID, state)
		case nodeAnalyze:
			node = p.analyze(ctx, runID, state)
		case nodeRespond:
			node = p.respond(ctx, runID, state)
		default:
			return state, fmt.Errorf("pipeline: unknown node %q", node)
		}
		p.metrics.observeNode(current, time.Since(start))
	}

	status := "answered"
	if len(state.Items) == 0 {
		status = "empty"
	}
	p.metrics.observeRun(status)
	p.emitter.Emit(emit.Event{
		RunID:  runID,
		Stage:  "pipeline",
		Source: state.Source,
		Msg:    "pipeline_complete",
		Meta:   map[string]any{"status": status, "tried": state.TriedSources, "retries": state.RetryCount},
	})
	return state, nil
}

// route selects the source and search query. Preset requests pass through;
// otherwise a low-temperature LLM call picks from the registry's keys.
// Any routing failure falls back to a news search of the raw message.
func (p *Pipeline) route(ctx context.Context, runID string, state *State) string {
	if state.Source != "" && state.Query != "" {
		return nodeCollect
	}
	if state.Query == "" {
		state.Query = state.UserMessage
	}

	prompt := fmt.Sprintf(
		"You are a router. Given the user message, pick the best data source and extract the search query.\n"+
			"Available sources: %s\n\n"+
			"User message: %s\n\n"+
			"Respond with ONLY valid JSON: {\"source\": \"...\", \"query\": \"...\"}\n"+
			"If unsure, default to source='news'.",
		strings.Join(p.sources.Sources(), ", "), state.UserMessage,
	)

	model := p.routingModel
	if state.Model != "" {
		model = state.Model
	}
	resp, err := p.llm.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.CompleteOptions{Model: model, Temperature: 0.1})
	if err != nil {
		p.routeFallback(runID, state, err)
		return nodeCollect
	}

	var parsed struct {
		Source string `json:"source"`
		Query  string `json:"query"`
	}
	text := stripCodeFence(p.llm.GetText(resp))
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		p.routeFallback(runID, state, err)
		return nodeCollect
	}

	if parsed.Source == "" || !p.sources.Has(parsed.Source) {
		parsed.Source = "news"
	}
	if parsed.Query == "" {
		parsed.Query = state.UserMessage
	}
	state.Source = parsed.Source
	state.Query = parsed.Query

	p.emitter.Emit(emit.Event{
		RunID: runID, Stage: nodeRoute, Source: state.Source,
		Msg: "route_done", Meta: map[string]any{"query": state.Query},
	})
	return nodeCollect
}

func (p *Pipeline) routeFallback(runID string, state *State, err error) {
	state.Source = "news"
	state.Query = state.UserMessage
	p.emitter.Emit(emit.Event{
		RunID: runID, Stage: nodeRoute, Source: state.Source,
		Msg: "route_fallback", Meta: map[string]any{"error": err.Error()},
	})
}

// collect fetches from the selected source and records the attempt. It
// proceeds to analyze when items arrived or retries are spent, to retry
// otherwise.
func (p *Pipeline) collect(ctx context.Context, runID string, state *State) string {
	state.TriedSources = append(state.TriedSources, state.Source)

	items, err := p.collectFrom(ctx, state.Source, state.Query)
	switch {
	case err != nil:
		state.Items = nil
		state.Error = fmt.Sprintf("Failed: %s (%v)", state.Source, err)
		p.emitter.Emit(emit.Event{
			RunID: runID, Stage: nodeCollect, Source: state.Source,
			Msg: "collect_error", Meta: map[string]any{"error": err.Error()},
		})
	case len(items) == 0:
		state.Items = nil
		state.Error = fmt.Sprintf("No results from %s", state.Source)
		p.emitter.Emit(emit.Event{
			RunID: runID, Stage: nodeCollect, Source: state.Source,
			Msg: "collect_empty", Meta: map[string]any{"query": state.Query},
		})
	default:
		state.Items = items
		state.Error = ""
		p.metrics.observeItems(len(items))
		p.emitter.Emit(emit.Event{
			RunID: runID, Stage: nodeCollect, Source: state.Source,
			Msg: "collect_done", Meta: map[string]any{"items": len(items)},
		})
		return nodeAnalyze
	}

	if state.RetryCount >= maxRetries {
		return nodeAnalyze
	}
	return nodeRetry
}

func (p *Pipeline) collectFrom(ctx context.Context, source, query string) ([]collector.Item, error) {
	c, err := p.sources.Get(source)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Collect(ctx, query, collector.Options{Limit: p.collectLimit})
}

// retry reroutes to the next untried fallback of the run's original
// source. An exhausted chain marks the run and gives up to analyze.
func (p *Pipeline) retry(runID string, state *State) string {
	original := state.Source
	if len(state.TriedSources) > 0 {
		original = state.TriedSources[0]
	}

	next, ok := nextFallback(original, state.TriedSources)
	if !ok {
		state.RetryCount = retryExhausted
		p.emitter.Emit(emit.Event{
			RunID: runID, Stage: nodeRetry, Source: original,
			Msg: "retry_exhausted", Meta: map[string]any{"tried": state.TriedSources},
		})
		return nodeAnalyze
	}

	state.RetryCount++
	p.metrics.observeFallback(state.Source, next)
	p.emitter.Emit(emit.Event{
		RunID: runID, Stage: nodeRetry, Source: next,
		Msg: "retry_reroute", Meta: map[string]any{"from": state.Source, "attempt": state.RetryCount},
	})
	state.Source = next
	state.Error = ""
	return nodeCollect
}

// analyze synthesizes the collected items into a briefing. When the LLM is
// unavailable the briefing degrades to a deterministic title list so the
// collected data still reaches the user.
func (p *Pipeline) analyze(ctx context.Context, runID string, state *State) string {
	if state.Error != "" || len(state.Items) == 0 {
		if state.Error != "" {
			state.Analysis = state.Error
		} else {
			state.Analysis = "No data to analyze."
		}
		return nodeRespond
	}

	var b strings.Builder
	for i, item := range capItems(state.Items, 5) {
		fmt.Fprintf(&b, "\n--- Item %d ---\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", item.Title)
		fmt.Fprintf(&b, "Content: %s\n", clipString(item.Content, 500))
		if item.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", item.URL)
		}
	}

	prompt := fmt.Sprintf(
		"You are a research analyst. Synthesize these %s results for the query '%s' into a well-structured briefing.\n\n"+
			"FORMAT RULES (Telegram Markdown):\n"+
			"- Use *bold* for emphasis (NOT **bold**)\n"+
			"- Use _italic_ for secondary info\n"+
			"- Use `code` for tickers, numbers, or technical terms\n"+
			"- Use bullet points (•) for lists\n"+
			"- Include clickable links as: [Title](url)\n"+
			"- Start with a 1-2 sentence *Key Takeaway*\n"+
			"- Then list *Highlights* as bullet points\n"+
			"- End with a *Sources* section linking the URLs\n"+
			"- Keep it under 3000 characters total\n"+
			"- Do NOT use headers with # — Telegram doesn't support them\n\n"+
			"DATA:\n%s",
		state.Source, state.Query, b.String(),
	)

	resp, err := p.llm.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.CompleteOptions{Model: state.AnalysisModel, Temperature: 0.4})
	if err != nil {
		state.Analysis = fallbackAnalysis(state)
		p.emitter.Emit(emit.Event{
			RunID: runID, Stage: nodeAnalyze, Source: state.Source,
			Msg: "analyze_fallback", Meta: map[string]any{"error": err.Error()},
		})
		return nodeRespond
	}

	state.Analysis = p.llm.GetText(resp)
	p.emitter.Emit(emit.Event{
		RunID: runID, Stage: nodeAnalyze, Source: state.Source,
		Msg: "analyze_done", Meta: map[string]any{"chars": len(state.Analysis)},
	})
	return nodeRespond
}

// fallbackAnalysis assembles a briefing without an LLM: a header plus the
// item titles and links.
func fallbackAnalysis(state *State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s results for '%s'*\n\n", strings.ToUpper(state.Source), state.Query)
	for _, item := range capItems(state.Items, 5) {
		fmt.Fprintf(&b, "• *%s*\n", item.Title)
		if item.URL != "" {
			fmt.Fprintf(&b, "  [%s](%s)\n", clipString(item.Title, 40), item.URL)
		}
	}
	return b.String()
}

// respond assembles the final message: an attribution header, a note when
// fallbacks were used, and the analysis, truncated to the Telegram limit.
func (p *Pipeline) respond(ctx context.Context, runID string, state *State) string {
	analysis := state.Analysis
	if analysis == "" {
		analysis = "No results available."
	}

	model := state.AnalysisModel
	if model == "" {
		model = p.llm.Model()
	}
	header := fmt.Sprintf("%s — %s [%s]\n", strings.ToUpper(state.Source), state.Query, model)
	if n := len(state.TriedSources); n > 1 {
		header += fmt.Sprintf("Tried %s first, used %s.\n",
			strings.Join(state.TriedSources[:n-1], ", "), state.TriedSources[n-1])
	}

	full := header + "\n" + analysis
	if len(full) > maxResponseLen {
		full = clipString(full, maxResponseLen-6) + "\n..."
	}
	state.Response = full

	p.logRun(ctx, runID, state)
	return nodeEnd
}

// logRun appends the run to the query log. Best-effort: a failed write is
// emitted and ignored.
func (p *Pipeline) logRun(ctx context.Context, runID string, state *State) {
	if p.queryLog == nil {
		return
	}
	query := state.UserMessage
	if query == "" {
		query = state.Query
	}
	rec := store.QueryRecord{
		UserID:    state.UserID,
		Query:     query,
		Source:    state.Source,
		Response:  state.Response,
		ItemCount: len(state.Items),
	}
	if err := p.queryLog.LogQuery(ctx, rec); err != nil {
		p.emitter.Emit(emit.Event{
			RunID: runID, Stage: nodeRespond, Source: state.Source,
			Msg: "query_log_failed", Meta: map[string]any{"error": err.Error()},
		})
	}
}

// stripCodeFence unwraps ```-fenced LLM output, tolerating a "json"
// language tag.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}
	parts := strings.Split(text, "```")
	if len(parts) < 2 {
		return text
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

func capItems(items []collector.Item, n int) []collector.Item {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// clipString truncates s to at most n bytes, backing off to a rune boundary
// so truncation never produces invalid UTF-8.
func clipString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func newRunID() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}
