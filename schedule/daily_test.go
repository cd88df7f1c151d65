package schedule

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/briefops/research-agent/pipeline"
	"github.com/briefops/research-agent/store"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []pipeline.Request
	analyses map[string]string
	failOn   map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failOn[req.Source] {
		return nil, errors.New("source blew up")
	}
	return &pipeline.State{
		Source:   req.Source,
		Query:    req.Query,
		Analysis: f.analyses[req.Source],
	}, nil
}

type fakeSubs struct {
	subs []store.Subscriber
	err  error
}

func (f *fakeSubs) ActiveSubscribers(ctx context.Context) ([]store.Subscriber, error) {
	return f.subs, f.err
}

type sentMessage struct {
	chatID  string
	group   bool
	message string
}

type fakeSink struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

func (f *fakeSink) SendGroup(ctx context.Context, groupID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: groupID, group: true, message: message})
	return f.sendErr
}

func (f *fakeSink) Send(ctx context.Context, chatID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, message: message})
	return f.sendErr
}

func TestNextRun(t *testing.T) {
	s := New(Config{Hour: 7, Minute: 30}, nil, nil, nil)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"BeforeTargetSameDay",
			time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 24, 7, 30, 0, 0, time.UTC),
		},
		{
			"AfterTargetNextDay",
			time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 25, 7, 30, 0, 0, time.UTC),
		},
		{
			"ExactlyAtTargetNextDay",
			time.Date(2026, 8, 24, 7, 30, 0, 0, time.UTC),
			time.Date(2026, 8, 25, 7, 30, 0, 0, time.UTC),
		},
		{
			"MonthBoundary",
			time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.nextRun(tt.now); !got.Equal(tt.want) {
				t.Errorf("nextRun(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestFire(t *testing.T) {
	now := time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC)

	newScheduler := func(runner *fakeRunner, subs *fakeSubs, sink *fakeSink, groupID string) *Scheduler {
		s := New(Config{
			Hour: 7, Minute: 0,
			Sources: []string{"news", "crypto"},
			GroupID: groupID,
		}, runner, subs, nil, sink)
		s.now = func() time.Time { return now }
		return s
	}

	t.Run("SendsToGroupAndSubscribers", func(t *testing.T) {
		runner := &fakeRunner{analyses: map[string]string{"news": "news analysis", "crypto": "crypto analysis"}}
		subs := &fakeSubs{subs: []store.Subscriber{
			{ChatID: "chat-1", Active: true},
			{ChatID: "chat-2", Active: true},
		}}
		sink := &fakeSink{}
		s := newScheduler(runner, subs, sink, "group-9")

		s.Fire(context.Background())

		if len(sink.sent) != 3 {
			t.Fatalf("expected group + 2 subscriber sends, got %d", len(sink.sent))
		}
		if !sink.sent[0].group || sink.sent[0].chatID != "group-9" {
			t.Errorf("first send = %+v, want group send", sink.sent[0])
		}
		for _, sent := range sink.sent {
			if !strings.HasPrefix(sent.message, "Good morning! Here's your daily briefing for August 24, 2026:") {
				t.Errorf("message missing dated header: %q", firstLine(sent.message))
			}
			if !strings.Contains(sent.message, "--- NEWS ---\nnews analysis") {
				t.Errorf("message missing news section: %q", sent.message)
			}
			if !strings.Contains(sent.message, "--- CRYPTO ---\ncrypto analysis") {
				t.Errorf("message missing crypto section: %q", sent.message)
			}
		}
	})

	t.Run("PresetSourceAndDefaultQuery", func(t *testing.T) {
		runner := &fakeRunner{analyses: map[string]string{"news": "a", "crypto": "b"}}
		s := newScheduler(runner, &fakeSubs{}, &fakeSink{}, "")

		s.Fire(context.Background())

		if len(runner.requests) != 2 {
			t.Fatalf("expected 2 pipeline runs, got %d", len(runner.requests))
		}
		if runner.requests[0].Source != "news" || runner.requests[0].Query != "top technology and AI news today" {
			t.Errorf("news request = %+v", runner.requests[0])
		}
		if runner.requests[1].Source != "crypto" || runner.requests[1].Query != "trending" {
			t.Errorf("crypto request = %+v", runner.requests[1])
		}
	})

	t.Run("FailedSourceBecomesUnavailableSection", func(t *testing.T) {
		runner := &fakeRunner{
			analyses: map[string]string{"news": "ok"},
			failOn:   map[string]bool{"crypto": true},
		}
		sink := &fakeSink{}
		s := newScheduler(runner, &fakeSubs{subs: []store.Subscriber{{ChatID: "c"}}}, sink, "")

		s.Fire(context.Background())

		if len(sink.sent) != 1 {
			t.Fatalf("expected 1 send, got %d", len(sink.sent))
		}
		if !strings.Contains(sink.sent[0].message, "--- CRYPTO ---\nUnavailable today.") {
			t.Errorf("message = %q", sink.sent[0].message)
		}
	})

	t.Run("NoGroupConfiguredSkipsGroupSend", func(t *testing.T) {
		runner := &fakeRunner{analyses: map[string]string{"news": "a", "crypto": "b"}}
		sink := &fakeSink{}
		s := newScheduler(runner, &fakeSubs{subs: []store.Subscriber{{ChatID: "c"}}}, sink, "")

		s.Fire(context.Background())

		for _, sent := range sink.sent {
			if sent.group {
				t.Errorf("unexpected group send: %+v", sent)
			}
		}
	})

	t.Run("SendFailureDoesNotStopBroadcast", func(t *testing.T) {
		runner := &fakeRunner{analyses: map[string]string{"news": "a", "crypto": "b"}}
		subs := &fakeSubs{subs: []store.Subscriber{{ChatID: "c1"}, {ChatID: "c2"}}}
		sink := &fakeSink{sendErr: errors.New("unreachable")}
		s := newScheduler(runner, subs, sink, "group-9")

		s.Fire(context.Background())

		// Group and both subscribers were attempted despite errors.
		if len(sink.sent) != 3 {
			t.Errorf("expected 3 attempted sends, got %d", len(sink.sent))
		}
	})

	t.Run("GroupMessageClipped", func(t *testing.T) {
		long := strings.Repeat("analysé ", 1000)
		runner := &fakeRunner{analyses: map[string]string{"news": long, "crypto": long}}
		sink := &fakeSink{}
		s := newScheduler(runner, &fakeSubs{subs: []store.Subscriber{{ChatID: "c"}}}, sink, "group-9")

		s.Fire(context.Background())

		if got := len(sink.sent[0].message); got > groupMessageLimit {
			t.Errorf("group message length = %d, want <= %d", got, groupMessageLimit)
		}
		if got := len(sink.sent[1].message); got > directMessageLimit {
			t.Errorf("direct message length = %d, want <= %d", got, directMessageLimit)
		}
		for _, sent := range sink.sent {
			if !utf8.ValidString(sent.message) {
				t.Error("clipped message is not valid UTF-8")
			}
		}
	})
}

func TestRunFiresAtTarget(t *testing.T) {
	runner := &fakeRunner{analyses: map[string]string{"news": "a"}}
	sink := &fakeSink{}
	s := New(Config{Hour: 7, Minute: 0, Sources: []string{"news"}, GroupID: "g"},
		runner, &fakeSubs{}, nil, sink)

	current := time.Date(2026, 8, 24, 6, 59, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	var slept []time.Duration
	fired := 0
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		current = current.Add(d)
		// Stop the loop after the fire and its guard sleep.
		if len(slept) >= 2 {
			return context.Canceled
		}
		return nil
	}

	err := s.Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	if len(slept) != 2 {
		t.Fatalf("sleeps = %v", slept)
	}
	if slept[0] != time.Minute {
		t.Errorf("waited %v until target, want 1m", slept[0])
	}
	if slept[1] != time.Minute {
		t.Errorf("guard sleep = %v, want 1m", slept[1])
	}

	fired = len(sink.sent)
	if fired != 1 {
		t.Errorf("expected exactly one briefing sent, got %d", fired)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
