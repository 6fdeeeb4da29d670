package types

// Candidate is a single hit returned by the full-text retriever for one
// issued query variant.
type Candidate struct {
	// Identification
	DocumentID  int64
	Path        string // Relative to the collection root
	Title       string
	Collection  string
	ContentHash string // Content fingerprint assigned at index time

	// Scoring
	BM25Score float64 // Normalized positive, higher is better

	// SourceQuery is the query variant that produced this candidate
	SourceQuery string
}

// FusedResult is one document after Reciprocal Rank Fusion across all
// query variants. There is exactly one FusedResult per DocumentID.
type FusedResult struct {
	Candidate

	FusedScore float64
	BestRank   int // Lowest (best) rank across all variants (1-based)

	// RankPositions maps each variant that returned the document to the
	// rank it assigned (1-based)
	RankPositions map[string]int
}

// RerankedResult is the terminal result entity returned to the caller.
type RerankedResult struct {
	FusedResult

	// LLMScore is the raw relevance judgment on the 0-10 scale.
	// Only meaningful when Reranked is true.
	LLMScore   float64
	FinalScore float64
	Reranked   bool // False for tail entries and fallback candidates

	Snippet string
}

// Validate checks if the fused result is internally consistent
func (fr *FusedResult) Validate() error {
	if fr.DocumentID == 0 {
		return ErrInvalidDocumentID
	}

	if fr.BestRank < 1 {
		return ErrInvalidRank
	}

	if fr.FusedScore < 0 {
		return ErrInvalidScore
	}

	if fr.ContentHash == "" {
		return ErrMissingContentHash
	}

	return nil
}
