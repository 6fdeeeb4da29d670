// Package fusion merges ranked result lists from multiple query variants
// into a single candidate list using Reciprocal Rank Fusion.
package fusion

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/localseek/pkg/types"
)

// DefaultRRFConstant is the documented default smoothing constant k
const DefaultRRFConstant = 60

// Retriever is the full-text search primitive consumed by the engine.
// Results are ordered best-first and must be deterministic for identical
// inputs over an unchanged index.
type Retriever interface {
	SearchText(ctx context.Context, query, collection string, limit int, minScore float64) ([]types.Candidate, error)
}

// Options controls one fusion pass
type Options struct {
	Collection string
	Limit      int     // Size of the fused list returned
	MinScore   float64 // BM25 floor applied per variant
	K          float64 // RRF smoothing constant, 0 means DefaultRRFConstant
}

// Engine issues the query variants against the retriever and fuses the
// ranked lists.
type Engine struct {
	retriever Retriever
	logger    *zap.Logger
}

// New creates a fusion engine
func New(retriever Retriever, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{retriever: retriever, logger: logger}
}

// Fuse runs every variant concurrently against the retriever and merges
// the result lists with RRF: fusedScore = sum over variants of 1/(k+rank).
//
// variants[0] must be the original query; its retriever failure is fatal.
// Failures on expansion variants degrade to an empty list for that variant.
// With a single variant the fusion degenerates to the retriever's BM25
// order with the RRF math applied to one term.
func (e *Engine) Fuse(ctx context.Context, variants []string, opts Options) ([]types.FusedResult, error) {
	if len(variants) == 0 {
		return nil, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	k := opts.K
	if k == 0 {
		k = DefaultRRFConstant
	}

	// Fan out one retriever call per variant; fetch extra depth so a
	// document ranked low in every list can still fuse into the window
	perVariant := make([][]types.Candidate, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			results, err := e.retriever.SearchText(gctx, variant, opts.Collection, opts.Limit*2, opts.MinScore)
			if err != nil {
				if i == 0 {
					return fmt.Errorf("%w: %v", types.ErrRetriever, err)
				}
				// An expansion variant contributes nothing on failure
				e.logger.Warn("variant retrieval failed",
					zap.String("variant", variant), zap.Error(err))
				return nil
			}
			perVariant[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseLists(variants, perVariant, k, opts.Limit)

	// A retriever handing back a malformed candidate must not reach the
	// reranker or the caller; drop it and keep the rest
	valid := fused[:0]
	for _, fr := range fused {
		if err := fr.Validate(); err != nil {
			e.logger.Warn("dropping inconsistent fused result",
				zap.Int64("document", fr.DocumentID), zap.Error(err))
			continue
		}
		valid = append(valid, fr)
	}
	return valid, nil
}

// fuseLists applies RRF over the per-variant ranked lists
func fuseLists(variants []string, perVariant [][]types.Candidate, k float64, limit int) []types.FusedResult {
	fused := make(map[int64]*types.FusedResult)

	for i, results := range perVariant {
		variant := variants[i]
		for pos, candidate := range results {
			rank := pos + 1

			entry, ok := fused[candidate.DocumentID]
			if !ok {
				entry = &types.FusedResult{
					Candidate:     candidate,
					BestRank:      rank,
					RankPositions: make(map[string]int),
				}
				fused[candidate.DocumentID] = entry
			}

			entry.FusedScore += 1.0 / (k + float64(rank))
			entry.RankPositions[variant] = rank

			// Retain the candidate fields from whichever variant
			// produced the best rank
			if rank < entry.BestRank {
				entry.BestRank = rank
				entry.Candidate = candidate
			}
		}
	}

	results := make([]types.FusedResult, 0, len(fused))
	for _, entry := range fused {
		results = append(results, *entry)
	}

	// Deterministic order: score desc, then best rank asc, then document
	// ID asc
	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		if results[i].BestRank != results[j].BestRank {
			return results[i].BestRank < results[j].BestRank
		}
		return results[i].DocumentID < results[j].DocumentID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
