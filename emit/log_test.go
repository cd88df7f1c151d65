package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_TextMode(t *testing.T) {
	t.Run("formats event as single line", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Event{
			RunID:  "run-001",
			Stage:  "collect",
			Source: "arxiv",
			Msg:    "collect_retry",
			Meta:   map[string]any{"attempt": 2},
		})

		out := buf.String()
		if !strings.HasPrefix(out, "[collect_retry]") {
			t.Errorf("expected line to start with [collect_retry], got %q", out)
		}
		for _, want := range []string{"run=run-001", "stage=collect", "source=arxiv", `"attempt":2`} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got %q", want, out)
			}
		}
		if !strings.HasSuffix(out, "\n") {
			t.Error("expected trailing newline")
		}
	})

	t.Run("omits empty fields", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Event{Msg: "scheduler_started"})

		out := strings.TrimSpace(buf.String())
		if out != "[scheduler_started]" {
			t.Errorf("expected bare message, got %q", out)
		}
	})
}

func TestLogEmitter_JSONMode(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{
		RunID: "run-002",
		Stage: "analyze",
		Msg:   "analyze_fallback",
		Meta:  map[string]any{"error": "llm unavailable"},
	})

	var decoded struct {
		RunID string         `json:"runID"`
		Stage string         `json:"stage"`
		Msg   string         `json:"msg"`
		Meta  map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if decoded.RunID != "run-002" || decoded.Stage != "analyze" || decoded.Msg != "analyze_fallback" {
		t.Errorf("unexpected decoded event: %+v", decoded)
	}
	if decoded.Meta["error"] != "llm unavailable" {
		t.Errorf("expected meta error, got %v", decoded.Meta)
	}
}

func TestLogEmitter_NilWriterDefaultsToStdout(t *testing.T) {
	emitter := NewLogEmitter(nil, false)
	if emitter.writer == nil {
		t.Error("expected non-nil writer")
	}
}

func TestNullEmitter(t *testing.T) {
	emitter := NewNullEmitter()
	// Must not panic, even with a fully empty event.
	emitter.Emit(Event{})
	emitter.Emit(Event{Msg: "anything", Meta: map[string]any{"k": "v"}})
}

func TestOrNull(t *testing.T) {
	if _, ok := OrNull(nil).(*NullEmitter); !ok {
		t.Error("expected OrNull(nil) to return a NullEmitter")
	}
	log := NewLogEmitter(&bytes.Buffer{}, false)
	if OrNull(log) != Emitter(log) {
		t.Error("expected OrNull to pass through a non-nil emitter")
	}
}
