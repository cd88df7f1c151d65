package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama talks to a local Ollama server over its /api/chat endpoint. Two
// model names are carried so routing can use a small fast model while
// analysis uses a larger one; CompleteOptions.Model picks per call.
type Ollama struct {
	baseURL       string
	routingModel  string
	analysisModel string
	client        *http.Client
}

// NewOllama returns a client for the Ollama server at baseURL.
func NewOllama(baseURL, routingModel, analysisModel string) *Ollama {
	return &Ollama{
		baseURL:       baseURL,
		routingModel:  routingModel,
		analysisModel: analysisModel,
		client:        &http.Client{Timeout: 120 * time.Second},
	}
}

// Model returns the analysis model, which is the default for Complete.
func (c *Ollama) Model() string { return c.analysisModel }

// RoutingModel returns the configured fast model for routing calls.
func (c *Ollama) RoutingModel() string { return c.routingModel }

// AnalysisModel returns the configured model for analysis calls.
func (c *Ollama) AnalysisModel() string { return c.analysisModel }

// ollamaResponse is the non-streaming /api/chat envelope.
type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (c *Ollama) Complete(ctx context.Context, msgs []Message, opts CompleteOptions) (any, error) {
	model := opts.Model
	if model == "" {
		model = c.analysisModel
	}
	reqBody := map[string]any{
		"model":    model,
		"messages": msgs,
		"stream":   false,
		"options":  map[string]any{"temperature": opts.temperature()},
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama chat: status %d: %s", resp.StatusCode, body)
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama chat: decoding response: %w", err)
	}
	if parsed.Message.Content == "" {
		return nil, ErrEmptyResponse
	}
	return &parsed, nil
}

func (c *Ollama) GetText(resp any) string {
	parsed, ok := resp.(*ollamaResponse)
	if !ok || parsed == nil {
		return ""
	}
	return parsed.Message.Content
}

// HealthCheck probes /api/tags, which answers quickly whenever the server
// is up, regardless of loaded models.
func (c *Ollama) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Ollama) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
