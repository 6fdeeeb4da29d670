package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidDocumentID  = errors.New("invalid document ID")
	ErrInvalidRank        = errors.New("rank must be >= 1")
	ErrInvalidScore       = errors.New("score must be >= 0")
	ErrMissingContentHash = errors.New("content hash is required")
)

// ErrRetriever wraps failures of the primary retrieval path. It is the only
// error class that surfaces to the caller of a search; everything else in the
// pipeline degrades gracefully.
var ErrRetriever = errors.New("retriever failure")
