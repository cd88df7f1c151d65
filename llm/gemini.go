package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini talks to the Google Generative AI API. System messages become the
// model's system instruction; user and assistant turns are concatenated
// into the prompt parts.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Gemini client. Construction dials the API, so it
// takes a context.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (c *Gemini) Model() string { return c.model }

func (c *Gemini) Complete(ctx context.Context, msgs []Message, opts CompleteOptions) (any, error) {
	name := opts.Model
	if name == "" {
		name = c.model
	}
	model := c.client.GenerativeModel(name)
	model.SetTemperature(float32(opts.temperature()))

	var parts []genai.Part
	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if c.GetText(resp) == "" {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

func (c *Gemini) GetText(resp any) string {
	parsed, ok := resp.(*genai.GenerateContentResponse)
	if !ok || parsed == nil || len(parsed.Candidates) == 0 {
		return ""
	}
	var text string
	if content := parsed.Candidates[0].Content; content != nil {
		for _, part := range content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	return text
}

// HealthCheck fetches the configured model's metadata.
func (c *Gemini) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.client.GenerativeModel(c.model).Info(ctx)
	return err == nil
}

func (c *Gemini) Close() error { return c.client.Close() }
