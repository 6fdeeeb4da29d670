package integration

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/dshills/localseek/internal/llm"
)

// MockLLM provides a scripted Ollama stand-in for integration tests.
// Expansion prompts get canned query variants; scoring prompts get a
// relevance score chosen by keyword overlap between the query and the
// document text embedded in the prompt.
type MockLLM struct {
	expansions map[string]string // original query -> newline-separated variants
	down       atomic.Bool
	calls      atomic.Int32
}

// NewMockLLM creates a mock with no scripted expansions
func NewMockLLM() *MockLLM {
	return &MockLLM{expansions: make(map[string]string)}
}

// ScriptExpansion registers the variants returned when query is expanded
func (m *MockLLM) ScriptExpansion(query string, variants ...string) {
	m.expansions[strings.ToLower(query)] = strings.Join(variants, "\n")
}

// SetDown makes every call fail with a connection error, simulating an
// unreachable Ollama server
func (m *MockLLM) SetDown(down bool) {
	m.down.Store(down)
}

// Calls reports how many requests reached the mock
func (m *MockLLM) Calls() int {
	return int(m.calls.Load())
}

// Complete implements llm.Client
func (m *MockLLM) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	m.calls.Add(1)
	if m.down.Load() {
		return "", llm.ErrConnectionRefused
	}

	if strings.Contains(prompt, "Output only the number.") {
		return m.score(prompt), nil
	}

	for query, variants := range m.expansions {
		if strings.Contains(strings.ToLower(prompt), query) {
			return variants, nil
		}
	}
	return "", nil
}

// Chat implements llm.Client
func (m *MockLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return m.Complete(ctx, b.String(), opts)
}

// Model implements llm.Client
func (m *MockLLM) Model() string { return "mock-v1" }

// Close implements llm.Client
func (m *MockLLM) Close() error { return nil }

// score counts query terms appearing in the prompt's document section
// and maps the overlap onto the 0-10 scale
func (m *MockLLM) score(prompt string) string {
	lower := strings.ToLower(prompt)
	_, doc, found := strings.Cut(lower, "document:")
	if !found {
		return "0"
	}
	query := queryLine(lower)

	matched := 0
	terms := strings.Fields(query)
	for _, term := range terms {
		if strings.Contains(doc, term) {
			matched++
		}
	}
	if len(terms) == 0 {
		return "0"
	}

	switch {
	case matched == len(terms):
		return "9"
	case matched > 0:
		return "5"
	default:
		return "1"
	}
}

func queryLine(prompt string) string {
	_, rest, found := strings.Cut(prompt, "query:")
	if !found {
		return ""
	}
	line, _, _ := strings.Cut(rest, "\n")
	return strings.TrimSpace(line)
}
