// Package pipeline composes the retrieval-augmentation pipeline:
// expansion, fusion, and reranking behind a single Search operation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/localseek/internal/expander"
	"github.com/dshills/localseek/internal/fusion"
	"github.com/dshills/localseek/internal/metrics"
	"github.com/dshills/localseek/internal/reranker"
	"github.com/dshills/localseek/internal/storage"
	"github.com/dshills/localseek/pkg/types"
)

const (
	// DefaultLimit caps results when the caller doesn't specify one
	DefaultLimit = 10
	// MaxLimit is the hard ceiling on requested results
	MaxLimit = 100
	// snippetLength is the excerpt size attached to returned results
	snippetLength = 150
)

// Request contains parameters for one search invocation
type Request struct {
	Query      string
	Collection string
	Limit      int
	MinScore   float64

	Expand      bool
	ExpandCount int

	Rerank     bool
	RerankTopK int

	RRFConstant float64
}

// Response contains the ordered results plus status flags. Degradation is
// reported through the flags, never as an error: a search that lost its
// LLM still returns the fusion ordering.
type Response struct {
	Results []types.RerankedResult
	Total   int

	Variants          []string // Original query plus applied expansions
	UsedExpansion     bool
	ExpansionCacheHit bool
	ExpansionDegraded bool

	UsedRerank      bool
	RerankDegraded  bool
	RerankCacheHits int

	Duration time.Duration
}

// Pipeline orchestrates Retrieve -> [Expand] -> Fuse -> [Rerank] -> Done.
// No state persists across calls; concurrent searches share only the
// cache store underneath the expander and reranker.
type Pipeline struct {
	storage  storage.Storage
	fusion   *fusion.Engine
	expander *expander.Expander // nil disables expansion entirely
	reranker *reranker.Reranker // nil disables reranking entirely
	recorder *metrics.Recorder  // nil disables metrics
	logger   *zap.Logger
}

// New creates a Pipeline. The expander, reranker, and recorder are
// optional.
func New(store storage.Storage, fuse *fusion.Engine, exp *expander.Expander, rr *reranker.Reranker, rec *metrics.Recorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		storage:  store,
		fusion:   fuse,
		expander: exp,
		reranker: rr,
		recorder: rec,
		logger:   logger,
	}
}

// Search runs the full pipeline for one query. Only retriever failures
// return an error; LLM and cache failures degrade with status flags set.
func (p *Pipeline) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	resp := &Response{Variants: []string{req.Query}}

	// Expand
	if req.Expand && p.expander != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := p.expander.Expand(ctx, req.Query, req.ExpandCount)
		resp.UsedExpansion = len(result.Expansions) > 0
		resp.ExpansionCacheHit = result.CacheHit
		resp.ExpansionDegraded = result.Degraded
		resp.Variants = append(resp.Variants, result.Expansions...)
	}

	// Fuse (single-variant fusion is a BM25 pass-through)
	fusedLimit := req.Limit
	if req.Rerank && req.RerankTopK > fusedLimit {
		fusedLimit = req.RerankTopK
	}
	fused, err := p.fusion.Fuse(ctx, resp.Variants, fusion.Options{
		Collection: req.Collection,
		Limit:      fusedLimit,
		MinScore:   req.MinScore,
		K:          req.RRFConstant,
	})
	if err != nil {
		return nil, err
	}

	// Rerank
	var results []types.RerankedResult
	if req.Rerank && p.reranker != nil && len(fused) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rr := p.reranker.Rerank(ctx, req.Query, fused, req.RerankTopK)
		results = rr.Results
		resp.UsedRerank = true
		resp.RerankDegraded = rr.Degraded
		resp.RerankCacheHits = rr.CacheHits
	} else {
		results = make([]types.RerankedResult, 0, len(fused))
		for _, fr := range fused {
			results = append(results, types.RerankedResult{
				FusedResult: fr,
				FinalScore:  fr.FusedScore,
			})
		}
	}

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	p.attachSnippets(ctx, req.Query, results)

	resp.Results = results
	resp.Total = len(results)
	resp.Duration = time.Since(start)

	p.record(ctx, req, resp)
	return resp, nil
}

// attachSnippets fills in display excerpts for the returned results. A
// content load failure only costs the snippet.
func (p *Pipeline) attachSnippets(ctx context.Context, query string, results []types.RerankedResult) {
	for i := range results {
		content, err := p.storage.GetContent(ctx, results[i].DocumentID)
		if err != nil {
			p.logger.Debug("snippet content unavailable",
				zap.Int64("document", results[i].DocumentID), zap.Error(err))
			continue
		}
		results[i].Snippet = storage.Snippet(content, query, snippetLength)
	}
}

// record persists search metrics; failures are logged and dropped
func (p *Pipeline) record(ctx context.Context, req Request, resp *Response) {
	if p.recorder == nil {
		return
	}

	topScore := 0.0
	if len(resp.Results) > 0 {
		topScore = resp.Results[0].FinalScore
	}

	err := p.recorder.Record(ctx, metrics.SearchMetrics{
		Query:             req.Query,
		Collection:        req.Collection,
		ResultCount:       resp.Total,
		TopScore:          topScore,
		UsedExpansion:     resp.UsedExpansion,
		ExpansionCacheHit: resp.ExpansionCacheHit,
		UsedRerank:        resp.UsedRerank,
		RerankCacheHits:   resp.RerankCacheHits,
		Degraded:          resp.ExpansionDegraded || resp.RerankDegraded,
		Latency:           resp.Duration,
	})
	if err != nil {
		p.logger.Warn("failed to record search metrics", zap.Error(err))
	}
}
