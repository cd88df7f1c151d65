package llm

import (
	"context"
	"sync"
)

// MockCall records one Complete invocation on a Mock.
type MockCall struct {
	Messages []Message
	Options  CompleteOptions
}

// mockResponse is the envelope a Mock hands back from Complete.
type mockResponse struct {
	text string
}

// Mock is a scripted Client for tests. Responses are consumed in order;
// when the script runs out the last response repeats. An Err, when set,
// fails every Complete.
type Mock struct {
	mu        sync.Mutex
	responses []string
	next      int
	calls     []MockCall

	// Err fails every Complete when non-nil.
	Err error

	// Healthy is returned by HealthCheck.
	Healthy bool

	// ModelName is returned by Model. Defaults to "mock" when empty.
	ModelName string
}

// NewMock returns a Mock that replies with the given responses in order.
func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses, Healthy: true}
}

func (m *Mock) Model() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

func (m *Mock) Complete(ctx context.Context, msgs []Message, opts CompleteOptions) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Messages: msgs, Options: opts})
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.responses) == 0 {
		return nil, ErrEmptyResponse
	}
	idx := m.next
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.next++
	return &mockResponse{text: m.responses[idx]}, nil
}

func (m *Mock) GetText(resp any) string {
	parsed, ok := resp.(*mockResponse)
	if !ok || parsed == nil {
		return ""
	}
	return parsed.text
}

func (m *Mock) HealthCheck(ctx context.Context) bool { return m.Healthy }

func (m *Mock) Close() error { return nil }

// Calls returns a copy of the recorded Complete invocations.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}
