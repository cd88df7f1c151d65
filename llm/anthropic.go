package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic talks to the Anthropic Messages API. System messages are folded
// into the request's system field; the rest become conversation turns.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic returns an Anthropic client.
func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *Anthropic) Model() string { return c.model }

func (c *Anthropic) Complete(ctx context.Context, msgs []Message, opts CompleteOptions) (any, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   1024,
		System:      system,
		Messages:    turns,
		Temperature: anthropic.Float(opts.temperature()),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	if c.GetText(message) == "" {
		return nil, ErrEmptyResponse
	}
	return message, nil
}

func (c *Anthropic) GetText(resp any) string {
	message, ok := resp.(*anthropic.Message)
	if !ok || message == nil {
		return ""
	}
	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}

// HealthCheck sends a one-token request against the configured model.
// Anthropic has no free liveness endpoint.
func (c *Anthropic) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err == nil
}

func (c *Anthropic) Close() error { return nil }
