// Package reranker re-orders fused candidates using LLM relevance
// judgments blended with the fusion signal by position-aware weights.
package reranker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/localseek/internal/cache"
	"github.com/dshills/localseek/internal/llm"
	"github.com/dshills/localseek/pkg/types"
)

const (
	// DefaultTopK is the number of fused candidates scored by the LLM
	DefaultTopK = 20

	// DefaultWorkers bounds the LLM scoring fan-out
	DefaultWorkers = 4

	// ScoreCeiling is the top of the relevance judgment scale
	ScoreCeiling = 10.0

	// promptContentLimit caps how much document text goes into a prompt
	promptContentLimit = 500
)

const scorePrompt = `Rate the relevance of the document to the query on a scale of 0-10.
0 = completely irrelevant
5 = somewhat relevant
10 = highly relevant

Output only the number.

Query: %s

Document: %s
%s`

// WeightBucket assigns a fusion-signal weight to a range of fused ranks.
// MaxRank is the largest 1-based rank the bucket covers; 0 covers all
// remaining ranks.
type WeightBucket struct {
	MaxRank int
	Weight  float64 // Fraction of the blend given to the fusion signal
}

// DefaultWeightBuckets trusts retrieval heavily at the top and lets the
// LLM nudge more as rank depth grows: a noisy LLM score cannot demote a
// near-certain exact match at rank 1.
var DefaultWeightBuckets = []WeightBucket{
	{MaxRank: 1, Weight: 0.75},
	{MaxRank: 5, Weight: 0.60},
	{MaxRank: 0, Weight: 0.40},
}

// ContentProvider fetches document text for scoring prompts
type ContentProvider interface {
	GetContent(ctx context.Context, docID int64) (string, error)
}

// Config tunes the reranker
type Config struct {
	TopK    int
	Workers int
	Buckets []WeightBucket
}

// Result carries the final ordering plus degradation status
type Result struct {
	Results   []types.RerankedResult
	CacheHits int
	LLMCalls  int
	Degraded  bool // At least one candidate fell back to its fusion score
}

// Reranker scores candidates against the query via the LLM client, with
// all scores cached by (query hash, content hash, model version).
type Reranker struct {
	client  llm.Client
	cache   *cache.Store // nil when caching is disabled
	content ContentProvider
	config  Config
	logger  *zap.Logger
}

// New creates a Reranker. The cache store may be nil.
func New(client llm.Client, store *cache.Store, content ContentProvider, config Config, logger *zap.Logger) *Reranker {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if len(config.Buckets) == 0 {
		config.Buckets = DefaultWeightBuckets
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{client: client, cache: store, content: content, config: config, logger: logger}
}

// Rerank blends LLM relevance scores into the top-K of the fused list.
// Entries beyond topK are appended unchanged in fusion order with the
// fused score as their final score. LLM unavailability never aborts the
// batch: unavailable candidates keep their fusion order while available
// ones are still reranked.
func (r *Reranker) Rerank(ctx context.Context, query string, fused []types.FusedResult, topK int) Result {
	if len(fused) == 0 {
		return Result{}
	}
	if topK <= 0 {
		topK = r.config.TopK
	}
	if topK > len(fused) {
		topK = len(fused)
	}

	selected := fused[:topK]
	tail := fused[topK:]

	scores, stats := r.collectScores(ctx, query, selected)

	results := blend(selected, scores, r.config.Buckets)

	// The untouched tail keeps its fusion order
	for _, fr := range tail {
		results = append(results, types.RerankedResult{
			FusedResult: fr,
			FinalScore:  fr.FusedScore,
		})
	}

	stats.Results = results
	return stats
}

// candidateScore is an LLM judgment for one selected candidate
type candidateScore struct {
	value float64
	ok    bool
}

// collectScores resolves an LLM score per candidate, cache first, then a
// bounded concurrent fan-out over the misses.
func (r *Reranker) collectScores(ctx context.Context, query string, selected []types.FusedResult) ([]candidateScore, Result) {
	var stats Result
	queryHash := cache.QueryHash(query)
	modelVersion := r.client.Model()

	scores := make([]candidateScore, len(selected))
	misses := make([]int, 0, len(selected))

	for i, fr := range selected {
		if r.cache == nil {
			misses = append(misses, i)
			continue
		}
		score, hit, err := r.cache.GetRerankScore(ctx, queryHash, fr.ContentHash, modelVersion)
		if err != nil {
			r.logger.Warn("rerank cache read failed", zap.Error(err))
		}
		if hit {
			scores[i] = candidateScore{value: score, ok: true}
			stats.CacheHits++
			continue
		}
		misses = append(misses, i)
	}

	if len(misses) == 0 {
		return scores, stats
	}

	var degraded atomic.Bool
	var llmCalls atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)
	for _, idx := range misses {
		g.Go(func() error {
			fr := selected[idx]
			llmCalls.Add(1)
			score, err := r.scoreCandidate(gctx, query, fr)
			if err != nil {
				if llm.IsUnavailable(err) || gctx.Err() != nil {
					degraded.Store(true)
					return nil
				}
				// Unparsable response: a miss with no score
				r.logger.Debug("rerank score unparsable",
					zap.Int64("document", fr.DocumentID), zap.Error(err))
				return nil
			}

			scores[idx] = candidateScore{value: score, ok: true}
			if r.cache != nil {
				if err := r.cache.PutRerankScore(gctx, queryHash, fr.ContentHash, score, modelVersion); err != nil {
					r.logger.Warn("rerank cache write failed", zap.Error(err))
				}
			}
			return nil
		})
	}
	// Workers only report degradation, never errors
	_ = g.Wait()

	stats.LLMCalls = int(llmCalls.Load())
	if degraded.Load() {
		// One warning per search, not per candidate
		r.logger.Warn("llm unavailable during rerank, affected candidates keep fusion order")
		stats.Degraded = true
	}
	return scores, stats
}

// scoreCandidate asks the LLM for a single clamped relevance judgment
func (r *Reranker) scoreCandidate(ctx context.Context, query string, fr types.FusedResult) (float64, error) {
	content, err := r.content.GetContent(ctx, fr.DocumentID)
	if err != nil {
		return 0, fmt.Errorf("load content: %w", err)
	}
	if len(content) > promptContentLimit {
		cut := promptContentLimit
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	response, err := r.client.Complete(ctx,
		fmt.Sprintf(scorePrompt, query, fr.Title, content),
		llm.Options{MaxTokens: 10, Temperature: 0})
	if err != nil {
		return 0, err
	}

	score, ok := parseScore(response)
	if !ok {
		return 0, fmt.Errorf("no score in response %q", response)
	}
	return score, nil
}

// parseScore extracts a 0-10 relevance score from an LLM response,
// tolerating formats like "8", "[1] 8" or "Score: 8.5". Values outside
// the scale are clamped.
func parseScore(response string) (float64, bool) {
	cleaned := strings.NewReplacer("[", " ", "]", " ", ":", " ", ",", " ").Replace(response)
	fields := strings.Fields(cleaned)
	for i := len(fields) - 1; i >= 0; i-- {
		value, err := strconv.ParseFloat(strings.TrimSuffix(fields[i], "."), 64)
		if err != nil {
			continue
		}
		if value < 0 {
			value = 0
		}
		if value > ScoreCeiling {
			value = ScoreCeiling
		}
		return value, true
	}
	return 0, false
}

// blend combines the fusion and LLM signals with position-aware weights
// and re-sorts the selected subset. Both signals are normalized to [0, 1]:
// fused scores by the subset maximum, LLM scores by the scale ceiling.
// Candidates without an LLM score keep the full fusion weight.
func blend(selected []types.FusedResult, scores []candidateScore, buckets []WeightBucket) []types.RerankedResult {
	maxFused := 0.0
	for _, fr := range selected {
		if fr.FusedScore > maxFused {
			maxFused = fr.FusedScore
		}
	}

	type blended struct {
		result   types.RerankedResult
		origRank int
	}

	items := make([]blended, len(selected))
	for i, fr := range selected {
		rank := i + 1
		normFused := 0.0
		if maxFused > 0 {
			normFused = fr.FusedScore / maxFused
		}

		result := types.RerankedResult{FusedResult: fr}
		if scores[i].ok {
			w := weightFor(rank, buckets)
			normLLM := scores[i].value / ScoreCeiling
			result.LLMScore = scores[i].value
			result.FinalScore = w*normFused + (1-w)*normLLM
			result.Reranked = true
		} else {
			result.FinalScore = normFused
		}
		items[i] = blended{result: result, origRank: rank}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].result.FinalScore != items[j].result.FinalScore {
			return items[i].result.FinalScore > items[j].result.FinalScore
		}
		return items[i].origRank < items[j].origRank
	})

	results := make([]types.RerankedResult, 0, len(items))
	for _, item := range items {
		results = append(results, item.result)
	}
	return results
}

// weightFor returns the fusion-signal fraction for a 1-based fused rank
func weightFor(rank int, buckets []WeightBucket) float64 {
	for _, b := range buckets {
		if b.MaxRank == 0 || rank <= b.MaxRank {
			return b.Weight
		}
	}
	return 1.0
}
