package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/briefops/research-agent/emit"
)

// Serper searches Google through the serper.dev API. Requires an API key.
type Serper struct {
	base
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerper returns a Serper collector. apiKey may be empty, in which case
// Collect fails with ErrMissingAPIKey.
func NewSerper(apiKey string, em emit.Emitter) *Serper {
	return &Serper{
		base:    newBase("serper", em),
		apiKey:  apiKey,
		baseURL: "https://google.serper.dev/search",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type serperResponse struct {
	AnswerBox struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"answerBox"`
	KnowledgeGraph struct {
		Title       string `json:"title"`
		Type        string `json:"type"`
		Description string `json:"description"`
		Website     string `json:"website"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

func (c *Serper) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("serper: %w", ErrMissingAPIKey)
	}
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		return c.search(ctx, query, opts.limitOr(8))
	})
}

func (c *Serper) search(ctx context.Context, query string, limit int) ([]Item, error) {
	header := http.Header{"X-API-KEY": {c.apiKey}}
	reqBody := map[string]any{"q": query, "num": limit}

	var payload serperResponse
	if err := postJSON(ctx, c.client, c.baseURL, header, reqBody, &payload); err != nil {
		return nil, err
	}

	var items []Item
	if answer := payload.AnswerBox; answer.Answer != "" || answer.Snippet != "" {
		text := answer.Answer
		if text == "" {
			text = answer.Snippet
		}
		items = append(items, Item{
			Source:  "serper_answer",
			Title:   answer.Title,
			Content: text,
			URL:     answer.Link,
		})
	}
	if kg := payload.KnowledgeGraph; kg.Title != "" && kg.Description != "" {
		items = append(items, Item{
			Source:  "serper_knowledge",
			Title:   fmt.Sprintf("%s (%s)", kg.Title, kg.Type),
			Content: kg.Description,
			URL:     kg.Website,
		})
	}
	for _, result := range payload.Organic {
		if len(items) >= limit {
			break
		}
		items = append(items, Item{
			Source:      "serper",
			Title:       result.Title,
			Content:     fmt.Sprintf("%s: %s", result.Title, result.Snippet),
			URL:         result.Link,
			PublishedAt: result.Date,
		})
	}
	return items, nil
}

func (c *Serper) Close() error { return closeClient(c.client) }
