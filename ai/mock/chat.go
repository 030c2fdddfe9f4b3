package mock

import (
	"context"
	"sync"
)

// DefaultReply is returned by MockChatCompleter when no CompleteFunc is set.
const DefaultReply = `{"long_summary_en": "A mock summary.", "one_liner_en": "Mock.", "domains_en": ["testing"], "keywords_en": ["mock"]}`

// MockChatCompleter is a test double for ai.ChatCompleter.
type MockChatCompleter struct {
	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	// ModelName is reported by Model. Defaults to "mock-chat".
	ModelName string

	mu      sync.Mutex
	prompts []string
}

// NewMockChatCompleter creates a chat completer that answers every prompt
// with DefaultReply.
func NewMockChatCompleter() *MockChatCompleter {
	return &MockChatCompleter{ModelName: "mock-chat"}
}

// Complete records the prompt and returns the configured reply.
func (m *MockChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return DefaultReply, nil
}

func (m *MockChatCompleter) Model() string {
	return m.ModelName
}

// CallCount returns the number of Complete calls.
func (m *MockChatCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received.
func (m *MockChatCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
