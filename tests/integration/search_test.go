package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/dshills/localseek/internal/cache"
	"github.com/dshills/localseek/internal/expander"
	"github.com/dshills/localseek/internal/fusion"
	"github.com/dshills/localseek/internal/indexer"
	"github.com/dshills/localseek/internal/pipeline"
	"github.com/dshills/localseek/internal/reranker"
	"github.com/dshills/localseek/internal/storage"
)

// SearchTestSuite runs the full pipeline over indexed fixture files,
// with a scripted LLM standing in for Ollama
type SearchTestSuite struct {
	suite.Suite
	storage  *storage.SQLiteStorage
	cache    *cache.Store
	llm      *MockLLM
	pipeline *pipeline.Pipeline
	docsDir  string
	ctx      context.Context
}

func (s *SearchTestSuite) SetupSuite() {
	s.ctx = context.Background()

	wd, err := os.Getwd()
	s.Require().NoError(err)
	s.docsDir = filepath.Join(filepath.Dir(wd), "testdata", "docs")
}

func (s *SearchTestSuite) SetupTest() {
	store, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.storage = store

	s.cache, err = cache.Open(":memory:", nil)
	s.Require().NoError(err)

	s.llm = NewMockLLM()
	s.llm.ScriptExpansion("rotate keys", "key rotation policy", "credential renewal")

	idx := indexer.New(s.storage, s.cache, nil)
	stats, err := idx.AddCollection(s.ctx, s.docsDir, "docs", "")
	s.Require().NoError(err)
	s.Require().Equal(4, stats.FilesIndexed)

	exp := expander.New(s.llm, s.cache, nil)
	rr := reranker.New(s.llm, s.cache, s.storage, reranker.Config{Workers: 2}, nil)
	s.pipeline = pipeline.New(s.storage, fusion.New(s.storage, nil), exp, rr, nil, nil)
}

func (s *SearchTestSuite) TearDownTest() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *SearchTestSuite) search(req pipeline.Request) *pipeline.Response {
	s.T().Helper()
	resp, err := s.pipeline.Search(s.ctx, req)
	s.Require().NoError(err)
	return resp
}

func (s *SearchTestSuite) TestFullPipeline() {
	resp := s.search(pipeline.Request{
		Query:  "rotate keys",
		Expand: true, ExpandCount: 2,
		Rerank: true, RerankTopK: 10,
	})

	s.Require().NotEmpty(resp.Results)
	s.Equal("authentication.md", resp.Results[0].Path)
	s.True(resp.Results[0].Reranked)
	s.Contains(resp.Results[0].Snippet, "otate")

	s.True(resp.UsedExpansion)
	s.True(resp.UsedRerank)
	s.False(resp.ExpansionDegraded)
	s.False(resp.RerankDegraded)
	s.Len(resp.Variants, 3, "original plus two expansions")
}

func (s *SearchTestSuite) TestLLMDownDegradesToBM25() {
	s.llm.SetDown(true)

	resp := s.search(pipeline.Request{
		Query:  "rotate keys",
		Expand: true, Rerank: true,
	})

	s.Require().NotEmpty(resp.Results)
	s.Equal("authentication.md", resp.Results[0].Path, "BM25 alone still finds it")
	s.True(resp.ExpansionDegraded)
	s.True(resp.RerankDegraded)
	s.Equal([]string{"rotate keys"}, resp.Variants)

	for _, r := range resp.Results {
		s.False(r.Reranked)
	}
}

func (s *SearchTestSuite) TestSecondSearchServedFromCache() {
	req := pipeline.Request{
		Query:  "rotate keys",
		Expand: true, ExpandCount: 2,
		Rerank: true, RerankTopK: 10,
	}
	first := s.search(req)
	callsAfterFirst := s.llm.Calls()

	second := s.search(req)
	s.True(second.ExpansionCacheHit)
	s.Positive(second.RerankCacheHits)
	s.Equal(callsAfterFirst, s.llm.Calls(), "warm caches need no LLM round trips")

	s.Require().Equal(len(first.Results), len(second.Results))
	for i := range first.Results {
		s.Equal(first.Results[i].Path, second.Results[i].Path)
	}
}

func (s *SearchTestSuite) TestCollectionFilter() {
	resp := s.search(pipeline.Request{
		Query:      "backups",
		Collection: "missing-collection",
	})
	s.Empty(resp.Results)

	resp = s.search(pipeline.Request{
		Query:      "backups",
		Collection: "docs",
	})
	s.Require().NotEmpty(resp.Results)
	s.Equal("runbooks/database.md", resp.Results[0].Path)
}

func (s *SearchTestSuite) TestMinScoreFiltersWeakMatches() {
	unfiltered := s.search(pipeline.Request{Query: "rotate keys"})
	s.Require().NotEmpty(unfiltered.Results)

	resp := s.search(pipeline.Request{Query: "rotate keys", MinScore: 1000})
	s.Empty(resp.Results, "an unreachable threshold drops everything")
}

func (s *SearchTestSuite) TestNestedDocumentSearchable() {
	resp := s.search(pipeline.Request{Query: "connection pool exhausted"})
	s.Require().NotEmpty(resp.Results)
	s.Equal("runbooks/database.md", resp.Results[0].Path)
}

func (s *SearchTestSuite) TestInvalidationAfterFileChange() {
	req := pipeline.Request{
		Query:  "session cookies expire",
		Rerank: true, RerankTopK: 10,
	}
	s.search(req)

	stats, err := s.cache.Stats(s.ctx)
	s.Require().NoError(err)
	s.Positive(stats.RerankEntries)

	// Reindex from a copy with sessions.md rewritten; the stale scores
	// keyed by its old content hash must go away
	dir := s.T().TempDir()
	s.Require().NoError(os.WriteFile(
		filepath.Join(dir, "sessions.md"),
		[]byte("# Session Handling\n\nEntirely new session text."), 0o644))

	idx := indexer.New(s.storage, s.cache, nil)
	_, err = idx.AddCollection(s.ctx, dir, "docs", "")
	s.Require().NoError(err)

	resp := s.search(req)
	s.Zero(resp.RerankCacheHits, "old content scores were invalidated")
}

func TestSearchSuite(t *testing.T) {
	suite.Run(t, new(SearchTestSuite))
}
