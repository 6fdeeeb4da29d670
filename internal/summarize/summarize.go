// Package summarize produces an LLM synthesis of the top search results,
// so a caller gets a short prose answer alongside the ranked list.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dshills/localseek/internal/llm"
	"github.com/dshills/localseek/pkg/types"
)

// DefaultMaxResults is how many results feed the summary when unspecified
const DefaultMaxResults = 5

// snippetLimit caps how much of each result's snippet enters the prompt
const snippetLimit = 300

const summaryPrompt = `You are a research assistant. Given search results for a query, provide a concise summary.

Query: %s

Search Results:
%s

Instructions:
- Synthesize the key insights from these documents
- Be concise (2-4 sentences)
- Mention specific document titles when relevant
- If results seem unrelated to the query, say so

Summary:`

// Summarizer generates result summaries through the LLM client
type Summarizer struct {
	client llm.Client
	logger *zap.Logger
}

// Result carries the summary plus degradation status
type Result struct {
	Summary  string
	Degraded bool // The LLM was needed but unavailable
}

// New creates a Summarizer
func New(client llm.Client, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{client: client, logger: logger}
}

// Summarize synthesizes the top maxResults results into a short summary.
// LLM failure is never fatal: the result degrades to an empty summary with
// the flag set. Empty input yields an empty summary without an LLM call.
func (s *Summarizer) Summarize(ctx context.Context, query string, results []types.RerankedResult, maxResults int) Result {
	if len(results) == 0 {
		return Result{}
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	var b strings.Builder
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "\n%d. **%s** (score: %.2f)\n   %s\n",
			i+1, title, r.FinalScore, truncateRunes(r.Snippet, snippetLimit))
	}

	reply, err := s.client.Chat(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(summaryPrompt, query, b.String())},
	}, llm.Options{MaxTokens: 200, Temperature: 0.3})
	if err != nil {
		s.logger.Warn("summary unavailable", zap.Error(err))
		return Result{Degraded: true}
	}

	return Result{Summary: strings.TrimSpace(reply)}
}

// truncateRunes cuts s to at most limit bytes without splitting a rune
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
