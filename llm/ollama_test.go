package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"model":"llama3.1:8b","message":{"role":"assistant","content":"hello there"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "small", "llama3.1:8b")
	defer c.Close()

	resp, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}, CompleteOptions{Temperature: 0.1})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := c.GetText(resp); got != "hello there" {
		t.Errorf("GetText = %q", got)
	}

	if gotBody["model"] != "llama3.1:8b" {
		t.Errorf("model = %v, want default analysis model", gotBody["model"])
	}
	if gotBody["stream"] != false {
		t.Errorf("stream = %v, want false", gotBody["stream"])
	}
	options, _ := gotBody["options"].(map[string]any)
	if options["temperature"] != 0.1 {
		t.Errorf("temperature = %v, want 0.1", options["temperature"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
}

func TestOllamaModelOverride(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		gotModel, _ = body["model"].(string)
		w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "small", "big")
	defer c.Close()

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}},
		CompleteOptions{Model: c.RoutingModel()})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotModel != "small" {
		t.Errorf("model = %q, want routing model", gotModel)
	}
}

func TestOllamaEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "a", "b")
	defer c.Close()

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, CompleteOptions{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "a", "b")
	defer c.Close()

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, CompleteOptions{})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestOllamaHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "a", "b")
	defer c.Close()
	if !c.HealthCheck(context.Background()) {
		t.Error("expected healthy")
	}

	down := NewOllama("http://127.0.0.1:1", "a", "b")
	defer down.Close()
	if down.HealthCheck(context.Background()) {
		t.Error("expected unhealthy for unreachable server")
	}
}

func TestGetTextForeignValue(t *testing.T) {
	c := NewOllama("http://localhost:11434", "a", "b")
	defer c.Close()
	if got := c.GetText("not an envelope"); got != "" {
		t.Errorf("GetText on foreign value = %q, want empty", got)
	}
	if got := c.GetText(nil); got != "" {
		t.Errorf("GetText(nil) = %q, want empty", got)
	}
}

func TestTemperatureDefault(t *testing.T) {
	if got := (CompleteOptions{}).temperature(); got != 0.7 {
		t.Errorf("default temperature = %v, want 0.7", got)
	}
	if got := (CompleteOptions{Temperature: 0.4}).temperature(); got != 0.4 {
		t.Errorf("explicit temperature = %v, want 0.4", got)
	}
}
