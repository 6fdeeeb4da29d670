package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFusedResultValidate(t *testing.T) {
	base := func() FusedResult {
		return FusedResult{
			Candidate:  Candidate{DocumentID: 1, ContentHash: "h"},
			FusedScore: 0.5,
			BestRank:   1,
		}
	}

	t.Run("consistent result passes", func(t *testing.T) {
		fr := base()
		assert.NoError(t, fr.Validate())
	})

	t.Run("zero document id", func(t *testing.T) {
		fr := base()
		fr.DocumentID = 0
		assert.ErrorIs(t, fr.Validate(), ErrInvalidDocumentID)
	})

	t.Run("rank below one", func(t *testing.T) {
		fr := base()
		fr.BestRank = 0
		assert.ErrorIs(t, fr.Validate(), ErrInvalidRank)
	})

	t.Run("negative score", func(t *testing.T) {
		fr := base()
		fr.FusedScore = -0.1
		assert.ErrorIs(t, fr.Validate(), ErrInvalidScore)
	})

	t.Run("missing content hash", func(t *testing.T) {
		fr := base()
		fr.ContentHash = ""
		assert.ErrorIs(t, fr.Validate(), ErrMissingContentHash)
	})
}
