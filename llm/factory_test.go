package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/briefops/research-agent/config"
)

func TestFactory(t *testing.T) {
	t.Run("Ollama", func(t *testing.T) {
		client, err := New(context.Background(), config.LLMConfig{
			Provider:            "ollama",
			OllamaBaseURL:       "http://localhost:11434",
			OllamaRoutingModel:  "small",
			OllamaAnalysisModel: "big",
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer client.Close()
		if client.Model() != "big" {
			t.Errorf("Model() = %q", client.Model())
		}
	})

	t.Run("OpenRouterWithKey", func(t *testing.T) {
		client, err := New(context.Background(), config.LLMConfig{
			Provider:         "openrouter",
			OpenRouterAPIKey: "sk-test",
			OpenRouterModel:  "deepseek/deepseek-chat",
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer client.Close()
		if client.Model() != "deepseek/deepseek-chat" {
			t.Errorf("Model() = %q", client.Model())
		}
	})

	t.Run("MissingKeyFailsLoudly", func(t *testing.T) {
		for _, provider := range []string{"openrouter", "anthropic", "gemini"} {
			_, err := New(context.Background(), config.LLMConfig{Provider: provider})
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("%s without key: expected ErrMissingCredentials, got %v", provider, err)
			}
		}
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		_, err := New(context.Background(), config.LLMConfig{Provider: "psychic"})
		if err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})
}

func TestMockScript(t *testing.T) {
	m := NewMock("first", "second")

	ctx := context.Background()
	for i, want := range []string{"first", "second", "second"} {
		resp, err := m.Complete(ctx, []Message{{Role: RoleUser, Content: "q"}}, CompleteOptions{Temperature: 0.1})
		if err != nil {
			t.Fatalf("Complete %d: %v", i, err)
		}
		if got := m.GetText(resp); got != want {
			t.Errorf("response %d = %q, want %q", i, got, want)
		}
	}

	calls := m.Calls()
	if len(calls) != 3 {
		t.Fatalf("recorded %d calls, want 3", len(calls))
	}
	if calls[0].Options.Temperature != 0.1 {
		t.Errorf("recorded temperature = %v", calls[0].Options.Temperature)
	}
}

func TestMockError(t *testing.T) {
	m := NewMock("unused")
	sentinel := errors.New("api down")
	m.Err = sentinel

	_, err := m.Complete(context.Background(), nil, CompleteOptions{})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected scripted error, got %v", err)
	}
}
