// Package schedule runs the daily briefing: at a configured UTC wall-clock
// time it executes the pipeline once per configured source, stitches the
// analyses into a single message, and broadcasts it to the configured group
// and every active subscriber.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/briefops/research-agent/emit"
	"github.com/briefops/research-agent/pipeline"
	"github.com/briefops/research-agent/store"
)

// groupMessageLimit and directMessageLimit cap the broadcast per sink kind.
const (
	groupMessageLimit  = 4000
	directMessageLimit = 4096
)

// defaultQueries maps a source to the query used for its daily section
// when none is configured. Sources not listed fall back to "trending".
var defaultQueries = map[string]string{
	"news":    "top technology and AI news today",
	"crypto":  "trending",
	"stocks":  "market",
	"weather": "New York",
	"reddit":  "trending technology",
	"arxiv":   "latest AI research",
	"github":  "trending repositories",
}

// Runner executes one pipeline run. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.State, error)
}

// SubscriberLister yields the chats subscribed to the briefing. store.Store
// satisfies it.
type SubscriberLister interface {
	ActiveSubscribers(ctx context.Context) ([]store.Subscriber, error)
}

// Sink delivers briefing messages. SendGroup posts to a group chat; Send
// direct-messages one subscriber.
type Sink interface {
	SendGroup(ctx context.Context, groupID, message string) error
	Send(ctx context.Context, chatID, message string) error
}

// Config parameterizes a Scheduler.
type Config struct {
	// Hour and Minute are the daily fire time, UTC.
	Hour   int
	Minute int

	// Sources lists the registry keys to brief on, in section order.
	Sources []string

	// Queries overrides the per-source default query.
	Queries map[string]string

	// GroupID is the group chat to post to. Empty skips the group send.
	GroupID string
}

// Scheduler fires the daily briefing. Time arithmetic goes through the now
// and sleep fields so tests can drive the clock.
type Scheduler struct {
	cfg     Config
	runner  Runner
	subs    SubscriberLister
	sinks   []Sink
	emitter emit.Emitter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Scheduler broadcasting through the given sinks.
func New(cfg Config, runner Runner, subs SubscriberLister, em emit.Emitter, sinks ...Sink) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		subs:    subs,
		sinks:   sinks,
		emitter: emit.OrNull(em),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextRun returns the next wall-clock fire time strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	target := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.Hour, s.cfg.Minute, 0, 0, time.UTC)
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// Run loops forever, firing at the configured time each day, until the
// context is cancelled. A guard sleep after each fire absorbs clock skew
// that could otherwise double-fire within the same minute.
func (s *Scheduler) Run(ctx context.Context) error {
	s.emitter.Emit(emit.Event{
		Stage: "scheduler", Msg: "scheduler_started",
		Meta: map[string]any{
			"target":  fmt.Sprintf("%02d:%02d UTC", s.cfg.Hour, s.cfg.Minute),
			"sources": s.cfg.Sources,
		},
	})

	for {
		now := s.now()
		target := s.nextRun(now)
		if err := s.sleep(ctx, target.Sub(now)); err != nil {
			return err
		}

		s.Fire(ctx)

		if err := s.sleep(ctx, time.Minute); err != nil {
			return err
		}
	}
}

// Fire generates the briefing and broadcasts it once. Send failures are
// emitted and skipped so one bad recipient never blocks the rest.
func (s *Scheduler) Fire(ctx context.Context) {
	briefing := s.generate(ctx)
	s.emitter.Emit(emit.Event{
		Stage: "scheduler", Msg: "daily_briefing_generated",
		Meta: map[string]any{"length": len(briefing)},
	})

	for _, sink := range s.sinks {
		if s.cfg.GroupID != "" {
			if err := sink.SendGroup(ctx, s.cfg.GroupID, clip(briefing, groupMessageLimit)); err != nil {
				s.emitter.Emit(emit.Event{
					Stage: "scheduler", Msg: "group_send_failed",
					Meta: map[string]any{"group": s.cfg.GroupID, "error": err.Error()},
				})
			}
		}

		subs, err := s.subs.ActiveSubscribers(ctx)
		if err != nil {
			s.emitter.Emit(emit.Event{
				Stage: "scheduler", Msg: "subscriber_list_failed",
				Meta: map[string]any{"error": err.Error()},
			})
			continue
		}
		for _, sub := range subs {
			if err := sink.Send(ctx, sub.ChatID, clip(briefing, directMessageLimit)); err != nil {
				s.emitter.Emit(emit.Event{
					Stage: "scheduler", Msg: "subscriber_send_failed",
					Meta: map[string]any{"chat": sub.ChatID, "error": err.Error()},
				})
			}
		}
	}
}

// generate runs the pipeline per source and assembles the briefing. A
// source that fails outright contributes an "Unavailable today" section
// rather than vanishing silently.
func (s *Scheduler) generate(ctx context.Context) string {
	var sections []string
	for _, source := range s.cfg.Sources {
		state, err := s.runner.Run(ctx, pipeline.Request{
			UserMessage: fmt.Sprintf("Daily %s update", source),
			Source:      source,
			Query:       s.queryFor(source),
		})
		if err != nil {
			s.emitter.Emit(emit.Event{
				Stage: "scheduler", Source: source, Msg: "daily_source_failed",
				Meta: map[string]any{"error": err.Error()},
			})
			sections = append(sections, fmt.Sprintf("--- %s ---\nUnavailable today.", strings.ToUpper(source)))
			continue
		}
		if state.Analysis == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("--- %s ---\n%s", strings.ToUpper(source), state.Analysis))
	}

	header := fmt.Sprintf("Good morning! Here's your daily briefing for %s:\n\n",
		s.now().UTC().Format("January 2, 2006"))
	return header + strings.Join(sections, "\n\n")
}

func (s *Scheduler) queryFor(source string) string {
	if q, ok := s.cfg.Queries[source]; ok && q != "" {
		return q
	}
	if q, ok := defaultQueries[source]; ok {
		return q
	}
	return "trending"
}

// clip truncates to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
