package fusion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/localseek/pkg/types"
)

// fakeRetriever returns a scripted list per query, or an error
type fakeRetriever struct {
	lists map[string][]types.Candidate
	errs  map[string]error
}

func (f *fakeRetriever) SearchText(ctx context.Context, query, collection string, limit int, minScore float64) ([]types.Candidate, error) {
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	results := f.lists[query]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func doc(id int64) types.Candidate {
	return types.Candidate{DocumentID: id, Path: "doc.md", ContentHash: "h"}
}

func TestFuse(t *testing.T) {
	ctx := context.Background()

	t.Run("document in both lists outranks single-list rank one", func(t *testing.T) {
		// D1 is rank 1 only for the original; D2 is rank 2 in both lists.
		// 2/62 > 1/61, so agreement across variants wins.
		retriever := &fakeRetriever{lists: map[string][]types.Candidate{
			"alpha":   {doc(1), doc(2)},
			"variant": {doc(3), doc(2)},
		}}
		engine := New(retriever, nil)

		results, err := engine.Fuse(ctx, []string{"alpha", "variant"}, Options{Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, int64(2), results[0].DocumentID)
		assert.InDelta(t, 2.0/62.0, results[0].FusedScore, 1e-12)

		// D1 and D3 both scored 1/61; the document ID breaks the tie
		assert.Equal(t, int64(1), results[1].DocumentID)
		assert.Equal(t, int64(3), results[2].DocumentID)
		assert.InDelta(t, 1.0/61.0, results[1].FusedScore, 1e-12)
	})

	t.Run("rank positions and best rank are tracked", func(t *testing.T) {
		retriever := &fakeRetriever{lists: map[string][]types.Candidate{
			"a": {doc(1), doc(2)},
			"b": {doc(2)},
		}}
		engine := New(retriever, nil)

		results, err := engine.Fuse(ctx, []string{"a", "b"}, Options{Limit: 10})
		require.NoError(t, err)

		top := results[0]
		assert.Equal(t, int64(2), top.DocumentID)
		assert.Equal(t, 1, top.BestRank)
		assert.Equal(t, map[string]int{"a": 2, "b": 1}, top.RankPositions)
	})

	t.Run("single variant keeps retriever order", func(t *testing.T) {
		retriever := &fakeRetriever{lists: map[string][]types.Candidate{
			"only": {doc(5), doc(3), doc(9)},
		}}
		engine := New(retriever, nil)

		results, err := engine.Fuse(ctx, []string{"only"}, Options{Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, int64(5), results[0].DocumentID)
		assert.Equal(t, int64(3), results[1].DocumentID)
		assert.Equal(t, int64(9), results[2].DocumentID)
	})

	t.Run("original query failure is fatal", func(t *testing.T) {
		retriever := &fakeRetriever{
			lists: map[string][]types.Candidate{"variant": {doc(1)}},
			errs:  map[string]error{"original": errors.New("fts syntax error")},
		}
		engine := New(retriever, nil)

		_, err := engine.Fuse(ctx, []string{"original", "variant"}, Options{Limit: 10})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrRetriever)
	})

	t.Run("variant failure degrades to its absence", func(t *testing.T) {
		retriever := &fakeRetriever{
			lists: map[string][]types.Candidate{"original": {doc(1), doc(2)}},
			errs:  map[string]error{"variant": errors.New("boom")},
		}
		engine := New(retriever, nil)

		results, err := engine.Fuse(ctx, []string{"original", "variant"}, Options{Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, int64(1), results[0].DocumentID)
	})

	t.Run("limit truncates the fused list", func(t *testing.T) {
		retriever := &fakeRetriever{lists: map[string][]types.Candidate{
			"q": {doc(1), doc(2), doc(3), doc(4)},
		}}
		engine := New(retriever, nil)

		results, err := engine.Fuse(ctx, []string{"q"}, Options{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("custom k changes the scores", func(t *testing.T) {
		retriever := &fakeRetriever{lists: map[string][]types.Candidate{
			"q": {doc(1)},
		}}
		engine := New(retriever, nil)

		results, err := engine.Fuse(ctx, []string{"q"}, Options{Limit: 10, K: 10})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0/11.0, results[0].FusedScore, 1e-12)
	})

	t.Run("no variants yields no results", func(t *testing.T) {
		engine := New(&fakeRetriever{}, nil)
		results, err := engine.Fuse(ctx, nil, Options{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("malformed candidates are dropped", func(t *testing.T) {
		retriever := &fakeRetriever{lists: map[string][]types.Candidate{
			"q": {
				doc(1),
				{DocumentID: 0, Path: "ghost.md", ContentHash: "h"},
				{DocumentID: 3, Path: "nohash.md"},
			},
		}}
		engine := New(retriever, nil)

		results, err := engine.Fuse(ctx, []string{"q"}, Options{Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, int64(1), results[0].DocumentID)
		assert.NoError(t, results[0].Validate())
	})

	t.Run("identical inputs fuse identically", func(t *testing.T) {
		retriever := &fakeRetriever{lists: map[string][]types.Candidate{
			"a": {doc(1), doc(2), doc(3)},
			"b": {doc(3), doc(1)},
		}}
		engine := New(retriever, nil)

		first, err := engine.Fuse(ctx, []string{"a", "b"}, Options{Limit: 10})
		require.NoError(t, err)
		for range 10 {
			again, err := engine.Fuse(ctx, []string{"a", "b"}, Options{Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}
