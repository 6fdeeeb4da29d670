package summarize

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/localseek/internal/llm"
	"github.com/dshills/localseek/pkg/types"
)

// fakeClient returns a scripted reply and records the last prompt
type fakeClient struct {
	response   string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeClient) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.response, f.err
}

func (f *fakeClient) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	f.calls++
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	return f.response, f.err
}

func (f *fakeClient) Model() string { return "fake-model" }
func (f *fakeClient) Close() error  { return nil }

func result(title, snippet string, score float64) types.RerankedResult {
	return types.RerankedResult{
		FusedResult: types.FusedResult{
			Candidate: types.Candidate{Title: title},
		},
		FinalScore: score,
		Snippet:    snippet,
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	t.Run("synthesizes top results", func(t *testing.T) {
		client := &fakeClient{response: " Keys rotate every ninety days per the Authentication guide. "}
		s := New(client, nil)

		out := s.Summarize(ctx, "rotate keys", []types.RerankedResult{
			result("Authentication", "Rotate keys every ninety days.", 0.9),
			result("Deployment Guide", "Signed release tags required.", 0.4),
		}, 0)

		assert.False(t, out.Degraded)
		assert.Equal(t, "Keys rotate every ninety days per the Authentication guide.", out.Summary)
		assert.Equal(t, 1, client.calls)

		assert.Contains(t, client.lastPrompt, "Query: rotate keys")
		assert.Contains(t, client.lastPrompt, "1. **Authentication** (score: 0.90)")
		assert.Contains(t, client.lastPrompt, "2. **Deployment Guide**")
		assert.Contains(t, client.lastPrompt, "Rotate keys every ninety days.")
	})

	t.Run("llm failure degrades", func(t *testing.T) {
		client := &fakeClient{err: llm.ErrConnectionRefused}
		s := New(client, nil)

		out := s.Summarize(ctx, "anything", []types.RerankedResult{
			result("Doc", "text", 0.5),
		}, 0)

		assert.True(t, out.Degraded)
		assert.Empty(t, out.Summary)
	})

	t.Run("empty results skip the llm", func(t *testing.T) {
		client := &fakeClient{response: "unused"}
		s := New(client, nil)

		out := s.Summarize(ctx, "anything", nil, 0)
		assert.Empty(t, out.Summary)
		assert.False(t, out.Degraded)
		assert.Zero(t, client.calls)
	})

	t.Run("caps results entering the prompt", func(t *testing.T) {
		client := &fakeClient{response: "ok"}
		s := New(client, nil)

		results := make([]types.RerankedResult, 8)
		for i := range results {
			results[i] = result("Doc", "snippet", 0.5)
		}
		s.Summarize(ctx, "q", results, 0)

		assert.Contains(t, client.lastPrompt, "5. **Doc**")
		assert.NotContains(t, client.lastPrompt, "6. **Doc**")
	})

	t.Run("untitled fallback", func(t *testing.T) {
		client := &fakeClient{response: "ok"}
		s := New(client, nil)

		s.Summarize(ctx, "q", []types.RerankedResult{result("", "snippet", 0.5)}, 0)
		assert.Contains(t, client.lastPrompt, "**Untitled**")
	})

	t.Run("long snippets truncate on rune boundaries", func(t *testing.T) {
		client := &fakeClient{response: "ok"}
		s := New(client, nil)

		snippet := strings.Repeat("日", 200) // 600 bytes, limit lands mid-rune
		s.Summarize(ctx, "q", []types.RerankedResult{result("Doc", snippet, 0.5)}, 0)

		require.True(t, strings.Contains(client.lastPrompt, "日"))
		assert.True(t, utf8.ValidString(client.lastPrompt))
	})
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "日", truncateRunes("日本", 4), "cut backs up to the rune start")
	assert.Equal(t, "", truncateRunes("日", 2))
}
