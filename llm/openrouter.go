package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouter talks to openrouter.ai, which fronts many hosted models behind
// an OpenAI-compatible API. Model names are namespaced, e.g.
// "deepseek/deepseek-chat" or "anthropic/claude-3.5-haiku".
type OpenRouter struct {
	client openai.Client
	model  string
}

// NewOpenRouter returns an OpenRouter client. The referer and title header
// values identify the app in OpenRouter's dashboards.
func NewOpenRouter(apiKey, model string) *OpenRouter {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(openRouterBaseURL),
		option.WithHeader("HTTP-Referer", "https://github.com/briefops/research-agent"),
		option.WithHeader("X-Title", "research-agent"),
	)
	return &OpenRouter{client: client, model: model}
}

func (c *OpenRouter) Model() string { return c.model }

func (c *OpenRouter) Complete(ctx context.Context, msgs []Message, opts CompleteOptions) (any, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    convertMessages(msgs),
		Temperature: openai.Float(opts.temperature()),
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter chat: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}
	return completion, nil
}

func convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			converted = append(converted, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		case RoleAssistant:
			converted = append(converted, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		default:
			converted = append(converted, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		}
	}
	return converted
}

func (c *OpenRouter) GetText(resp any) string {
	completion, ok := resp.(*openai.ChatCompletion)
	if !ok || completion == nil || len(completion.Choices) == 0 {
		return ""
	}
	return completion.Choices[0].Message.Content
}

// HealthCheck lists available models, which exercises auth without
// consuming tokens.
func (c *OpenRouter) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.client.Models.List(ctx)
	return err == nil
}

func (c *OpenRouter) Close() error { return nil }
