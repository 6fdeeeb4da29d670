package storage

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	t.Run("short content returned whole", func(t *testing.T) {
		assert.Equal(t, "tiny document", Snippet("tiny document", "tiny", 150))
	})

	t.Run("centers on the first matching term", func(t *testing.T) {
		content := strings.Repeat("filler words here ", 30) +
			"the authentication token lives in the header " +
			strings.Repeat("more filler after ", 30)

		snippet := Snippet(content, "authentication", 150)
		assert.Contains(t, snippet, "authentication")
		assert.LessOrEqual(t, len(snippet), 150+10, "bounded by maxLength plus ellipses")
	})

	t.Run("marks truncation with ellipses", func(t *testing.T) {
		content := strings.Repeat("aaa ", 50) + "needle " + strings.Repeat("bbb ", 50)
		snippet := Snippet(content, "needle", 100)
		assert.True(t, strings.HasPrefix(snippet, "..."))
		assert.True(t, strings.HasSuffix(snippet, "..."))
	})

	t.Run("no term match truncates from the start", func(t *testing.T) {
		content := strings.Repeat("word ", 100)
		snippet := Snippet(content, "absent", 50)
		assert.Contains(t, snippet, "word")
		assert.True(t, strings.HasSuffix(snippet, "..."))
	})

	t.Run("fts operators are not treated as terms", func(t *testing.T) {
		content := "alpha " + strings.Repeat("x ", 100) + "beta tail"
		snippet := Snippet(content, `alpha OR beta`, 60)
		// "OR" must not match; "alpha" at position 0 wins
		assert.True(t, strings.HasPrefix(snippet, "alpha"))
	})

	t.Run("case insensitive matching", func(t *testing.T) {
		content := strings.Repeat("pad ", 40) + "NEEDLE in the middle " + strings.Repeat("pad ", 40)
		snippet := Snippet(content, "needle", 80)
		assert.Contains(t, snippet, "NEEDLE")
	})

	t.Run("collapses internal whitespace", func(t *testing.T) {
		snippet := Snippet("spaced\n\nout\tcontent", "spaced", 150)
		assert.Equal(t, "spaced out content", snippet)
	})

	t.Run("window edges never split multi-byte runes", func(t *testing.T) {
		// 3-byte runes, so byte offsets not divisible by 3 land mid-rune
		content := strings.Repeat("日", 50) + " needle " + strings.Repeat("本", 50)
		snippet := Snippet(content, "needle", 40)
		assert.Contains(t, snippet, "needle")
		assert.True(t, utf8.ValidString(snippet))
	})

	t.Run("no-match truncation stays valid utf-8", func(t *testing.T) {
		content := strings.Repeat("日", 100)
		snippet := Snippet(content, "absent", 50)
		assert.True(t, utf8.ValidString(snippet))
		assert.True(t, strings.HasSuffix(snippet, "..."))
	})
}

func TestSnapRuneStart(t *testing.T) {
	s := "a日b" // 日 occupies bytes 1-3
	assert.Equal(t, 0, snapRuneStart(s, 0))
	assert.Equal(t, 1, snapRuneStart(s, 2), "mid-rune backs up to the rune start")
	assert.Equal(t, 1, snapRuneStart(s, 3))
	assert.Equal(t, 4, snapRuneStart(s, 4))
	assert.Equal(t, len(s), snapRuneStart(s, len(s)))
}
