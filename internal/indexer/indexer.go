package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/localseek/internal/storage"
)

// DefaultGlobPattern matches the files indexed when none is specified
const DefaultGlobPattern = "**/*.md"

// maxFileSize caps individual files to keep the index bounded
const maxFileSize = 10 << 20 // 10 MiB

// Invalidator receives the old content hash whenever a document changes
// or is removed. This is the sole write path into cache invalidation from
// outside the search core.
type Invalidator interface {
	InvalidateDocument(ctx context.Context, oldContentHash string) error
}

// Indexer crawls collection folders into the document index
type Indexer struct {
	storage     storage.Storage
	invalidator Invalidator // nil when caching is disabled
	logger      *zap.Logger

	workers int
	lock    IndexLock
}

// Statistics contains the outcome of one indexing operation
type Statistics struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	FilesRemoved  int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates an Indexer. The invalidator may be nil.
func New(store storage.Storage, invalidator Invalidator, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		storage:     store,
		invalidator: invalidator,
		logger:      logger,
		workers:     runtime.NumCPU(),
	}
}

// AddCollection registers a folder under a name and indexes its documents.
// Re-adding an existing name updates its path and glob pattern.
func (idx *Indexer) AddCollection(ctx context.Context, rootPath, name, globPattern string) (*Statistics, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}
	if globPattern == "" {
		globPattern = DefaultGlobPattern
	}

	collection, err := idx.storage.GetCollection(ctx, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		collection = &storage.Collection{Name: name, Path: absPath, GlobPattern: globPattern}
		if err := idx.storage.CreateCollection(ctx, collection); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		collection.Path = absPath
		collection.GlobPattern = globPattern
		if err := idx.storage.UpdateCollection(ctx, collection); err != nil {
			return nil, err
		}
	}

	return idx.indexCollection(ctx, collection)
}

// UpdateCollection re-indexes a collection by name
func (idx *Indexer) UpdateCollection(ctx context.Context, name string) (*Statistics, error) {
	collection, err := idx.storage.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	return idx.indexCollection(ctx, collection)
}

// UpdateAll re-indexes every registered collection
func (idx *Indexer) UpdateAll(ctx context.Context) (map[string]*Statistics, error) {
	collections, err := idx.storage.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*Statistics, len(collections))
	for _, ci := range collections {
		collection := ci.Collection
		stats, err := idx.indexCollection(ctx, &collection)
		if err != nil {
			return results, fmt.Errorf("failed to update %s: %w", collection.Name, err)
		}
		results[collection.Name] = stats
	}
	return results, nil
}

// RemoveCollection drops a collection and its documents, invalidating
// every cached score keyed by their content.
func (idx *Indexer) RemoveCollection(ctx context.Context, name string) error {
	collection, err := idx.storage.GetCollection(ctx, name)
	if err != nil {
		return err
	}

	hashes, err := idx.storage.ListDocumentPaths(ctx, collection.ID)
	if err != nil {
		return err
	}

	if err := idx.storage.DeleteCollection(ctx, name); err != nil {
		return err
	}

	for _, hash := range hashes {
		idx.invalidate(ctx, hash)
	}
	return nil
}

// indexCollection walks the collection folder, upserting new and changed
// documents and deleting documents whose files disappeared.
func (idx *Indexer) indexCollection(ctx context.Context, collection *storage.Collection) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, fmt.Errorf("indexing already in progress")
	}
	defer idx.lock.Release()

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	existing, err := idx.storage.ListDocumentPaths(ctx, collection.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	files, err := discoverFiles(collection.Path, collection.GlobPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	var indexed, skipped, failed atomic.Int32
	var mu sync.Mutex
	seen := make(map[string]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, relPath := range files {
		mu.Lock()
		seen[relPath] = true
		mu.Unlock()

		g.Go(func() error {
			err := idx.indexFile(gctx, collection, relPath, existing[relPath])
			switch {
			case err == errUnchanged:
				skipped.Add(1)
			case err != nil:
				failed.Add(1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages,
					fmt.Sprintf("%s: %v", relPath, err))
				mu.Unlock()
			default:
				indexed.Add(1)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Delete documents whose files no longer exist
	for relPath, oldHash := range existing {
		if seen[relPath] {
			continue
		}
		doc, err := idx.storage.GetDocument(ctx, collection.ID, relPath)
		if err != nil {
			continue
		}
		if err := idx.storage.DeleteDocument(ctx, doc.ID); err != nil {
			stats.ErrorMessages = append(stats.ErrorMessages,
				fmt.Sprintf("%s: delete failed: %v", relPath, err))
			continue
		}
		idx.invalidate(ctx, oldHash)
		stats.FilesRemoved++
	}

	if err := idx.storage.UpdateCollection(ctx, collection); err != nil {
		idx.logger.Warn("failed to touch collection", zap.Error(err))
	}

	stats.FilesIndexed = int(indexed.Load())
	stats.FilesSkipped = int(skipped.Load())
	stats.FilesFailed = int(failed.Load())
	stats.Duration = time.Since(startTime)
	return stats, nil
}

// errUnchanged signals that a file's content hash matched the index
var errUnchanged = errors.New("unchanged")

// indexFile reads, hashes, and upserts one file. When its hash differs
// from oldHash the stale cached scores are invalidated.
func (idx *Indexer) indexFile(ctx context.Context, collection *storage.Collection, relPath, oldHash string) error {
	fullPath := filepath.Join(collection.Path, relPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return err
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("file too large (%d bytes)", info.Size())
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(content)
	contentHash := hex.EncodeToString(sum[:])
	if contentHash == oldHash {
		return errUnchanged
	}

	doc := &storage.Document{
		CollectionID: collection.ID,
		Path:         relPath,
		Title:        extractTitle(string(content), relPath),
		Content:      string(content),
		ContentHash:  contentHash,
	}
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return err
	}

	if oldHash != "" {
		idx.invalidate(ctx, oldHash)
	}
	return nil
}

// invalidate drops cached scores for an old content hash; failure only
// costs cache effectiveness.
func (idx *Indexer) invalidate(ctx context.Context, oldHash string) {
	if idx.invalidator == nil || oldHash == "" {
		return
	}
	if err := idx.invalidator.InvalidateDocument(ctx, oldHash); err != nil {
		idx.logger.Warn("cache invalidation failed",
			zap.String("content_hash", oldHash), zap.Error(err))
	}
}

// discoverFiles walks root and returns relative paths matching pattern,
// skipping hidden directories.
func discoverFiles(root, pattern string) ([]string, error) {
	files := make([]string, 0, 64)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if matchPattern(relPath, pattern) {
			files = append(files, relPath)
		}
		return nil
	})
	return files, err
}

// matchPattern matches a slash-separated relative path against a glob.
// "**/" prefixes match at any depth; plain patterns use path.Match rules.
func matchPattern(relPath, pattern string) bool {
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		ok, _ := path.Match(rest, path.Base(relPath))
		return ok
	}
	ok, _ := path.Match(pattern, relPath)
	return ok
}

// extractTitle returns the first markdown heading, or the file name
// without extension when there is none.
func extractTitle(content, relPath string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	base := path.Base(relPath)
	return strings.TrimSuffix(base, path.Ext(base))
}
