// Package expander generates alternative phrasings of a search query via
// the LLM client, cached by normalized query hash and model version.
package expander

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dshills/localseek/internal/cache"
	"github.com/dshills/localseek/internal/llm"
)

// DefaultCount is the number of expansions requested when unspecified
const DefaultCount = 2

const systemPrompt = `Generate %d alternative search queries for the given query.
Output only the queries, one per line. No numbering, no explanation, no quotes.
Keep them concise and focused on the same intent.`

// Expander produces query expansions with cache-first lookup
type Expander struct {
	client llm.Client
	cache  *cache.Store // nil when caching is disabled
	logger *zap.Logger
}

// Result carries the expansions plus degradation status so callers can
// distinguish "used fallback" from "fully succeeded".
type Result struct {
	Expansions []string
	CacheHit   bool // At least part of the result came from cache
	Degraded   bool // The LLM was needed but unavailable
}

// New creates an Expander. The cache store may be nil.
func New(client llm.Client, store *cache.Store, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{client: client, cache: store, logger: logger}
}

// Expand returns up to count alternative phrasings of query, each distinct
// from the original and from one another under case-insensitive,
// whitespace-normalized comparison. LLM failure is never fatal: the result
// degrades to whatever the cache held, possibly nothing.
func (e *Expander) Expand(ctx context.Context, query string, count int) Result {
	if count <= 0 {
		count = DefaultCount
	}

	queryHash := cache.QueryHash(query)
	modelVersion := e.client.Model()

	var cached []string
	var cacheHit bool
	if e.cache != nil {
		var err error
		cached, cacheHit, err = e.cache.GetExpansions(ctx, queryHash, modelVersion)
		if err != nil {
			// Read failure is a miss
			e.logger.Warn("expansion cache read failed", zap.Error(err))
			cached, cacheHit = nil, false
		}
	}

	if cacheHit && len(cached) >= count {
		return Result{Expansions: cached[:count], CacheHit: true}
	}

	// Full miss or deficit: ask the LLM for only what is missing
	deficit := count - len(cached)
	generated, err := e.generate(ctx, query, deficit, cached)
	if err != nil {
		e.logger.Warn("query expansion unavailable", zap.Error(err))
		return Result{Expansions: cached, CacheHit: cacheHit, Degraded: true}
	}

	merged := append(append([]string{}, cached...), generated...)
	if len(merged) > count {
		merged = merged[:count]
	}

	if e.cache != nil && len(merged) > 0 {
		if err := e.cache.PutExpansions(ctx, queryHash, query, merged, modelVersion); err != nil {
			// A failed write only costs the next call a cache miss
			e.logger.Warn("expansion cache write failed", zap.Error(err))
		}
	}

	return Result{Expansions: merged, CacheHit: cacheHit}
}

// generate calls the LLM for count alternative phrasings, filtering out
// duplicates of the original query and of existing expansions.
func (e *Expander) generate(ctx context.Context, query string, count int, existing []string) ([]string, error) {
	response, err := e.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, count)},
		{Role: "user", Content: "Query: " + query},
	}, llm.Options{
		MaxTokens:   100,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	return parseExpansions(response, query, existing, count), nil
}

// parseExpansions splits an LLM response into expansion candidates, one
// per line, discarding numbering, bullets, empties and duplicates.
func parseExpansions(response, query string, existing []string, max int) []string {
	seen := map[string]bool{normalize(query): true}
	for _, exp := range existing {
		seen[normalize(exp)] = true
	}

	expansions := make([]string, 0, max)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 2 {
			continue
		}

		// Strip common prefixes like "1.", "2)", "- "
		if line[0] >= '0' && line[0] <= '9' && strings.ContainsRune(".):", rune(line[1])) {
			line = strings.TrimSpace(line[2:])
		} else if r, size := utf8.DecodeRuneInString(line); strings.ContainsRune("-*•", r) {
			line = strings.TrimSpace(line[size:])
		}
		line = strings.Trim(line, `"`)

		if line == "" || seen[normalize(line)] {
			continue
		}
		seen[normalize(line)] = true
		expansions = append(expansions, line)

		if len(expansions) == max {
			break
		}
	}
	return expansions
}

// normalize lowercases and collapses whitespace for comparison
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
