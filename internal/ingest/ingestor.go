package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

// ErrNoText reports a document that yielded no chunkable text.
var ErrNoText = errors.New("no text found in document")

// DocumentLedger tracks which documents have already been ingested, keyed by
// a content hash. It makes re-ingestion idempotent: the index is append-only,
// so without it every watcher sync or server restart would duplicate the
// corpus.
type DocumentLedger interface {
	HasDocument(ctx context.Context, hash string) (bool, error)
	RecordDocument(ctx context.Context, hash string) error
}

// Ingestor runs the ingestion flow: extract, chunk, embed, insert, persist.
// A single writer mutex serializes the insert-then-persist sequence so
// concurrent uploads cannot interleave and tear the persisted pair.
type Ingestor struct {
	embedder  embedding.Embedder
	index     *vector.Index
	extractor *extract.Extractor
	chunker   *Chunker
	ledger    DocumentLedger // optional; when set, duplicate content is skipped
	logger    *zap.Logger    // optional; when set, logs debug events

	mu sync.Mutex
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithLogger sets a logger for debug output (files ingested, chunk counts).
func WithLogger(l *zap.Logger) IngestorOption {
	return func(ing *Ingestor) { ing.logger = l }
}

// WithDocumentLedger enables content-hash deduplication: text whose hash the
// ledger already holds is skipped instead of re-ingested.
func WithDocumentLedger(ledger DocumentLedger) IngestorOption {
	return func(ing *Ingestor) { ing.ledger = ledger }
}

// NewIngestor creates an ingestor with the given dependencies. cfg supplies
// the chunking parameters.
func NewIngestor(
	embedder embedding.Embedder,
	index *vector.Index,
	extractor *extract.Extractor,
	cfg *config.RAGConfig,
	opts ...IngestorOption,
) *Ingestor {
	ing := &Ingestor{
		embedder:  embedder,
		index:     index,
		extractor: extractor,
		chunker:   NewChunker(cfg.ChunkSize, cfg.OverlapOrDefault()),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// IngestText chunks and embeds text, appends it to the index, and persists
// both artifacts. Each chunk is embedded exactly once. Text the ledger has
// already seen is skipped, returning 0, so watcher syncs and restarts are
// idempotent. Returns the number of chunks added. Any failure before the
// insert leaves the index unchanged.
func (ing *Ingestor) IngestText(ctx context.Context, text string) (int, error) {
	chunks := ing.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, ErrNoText
	}
	hash := textHash(text)
	if ing.ledger != nil {
		seen, err := ing.ledger.HasDocument(ctx, hash)
		if err != nil {
			return 0, fmt.Errorf("check document ledger: %w", err)
		}
		if seen {
			if ing.logger != nil {
				ing.logger.Debug("skipping already ingested document", zap.String("hash", hash))
			}
			return 0, nil
		}
	}
	embeddings, err := ing.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	ing.mu.Lock()
	defer ing.mu.Unlock()
	if err := ing.index.Insert(ctx, embeddings, chunks); err != nil {
		return 0, fmt.Errorf("insert into index: %w", err)
	}
	if err := ing.index.Persist(ctx); err != nil {
		return 0, fmt.Errorf("persist index: %w", err)
	}
	if ing.ledger != nil {
		if err := ing.ledger.RecordDocument(ctx, hash); err != nil {
			return 0, fmt.Errorf("record document: %w", err)
		}
	}
	if ing.logger != nil {
		ing.logger.Debug("ingested text", zap.Int("chunks", len(chunks)), zap.Int("index_size", ing.index.Size()))
	}
	return len(chunks), nil
}

// textHash returns a stable identity for extracted document text.
func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IngestBytes extracts text from a document given as raw bytes plus its file
// extension (with leading dot), then ingests it.
func (ing *Ingestor) IngestBytes(ctx context.Context, content []byte, ext string) (int, error) {
	text, err := ing.extractor.ExtractBytes(content, ext)
	if err != nil {
		return 0, err
	}
	return ing.IngestText(ctx, text)
}

// IngestFile extracts text from the file at path and ingests it.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	if ing.logger != nil {
		ing.logger.Debug("ingesting file", zap.String("path", path))
	}
	text, err := ing.extractor.Extract(path)
	if err != nil {
		return 0, err
	}
	return ing.IngestText(ctx, text)
}

// IngestDirectory ingests every supported file under dir, recursively.
// Returns the number of files ingested; files that fail are skipped and
// reported through the logger rather than aborting the batch.
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string) (int, error) {
	ingested := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ing.extractor.Supported(strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		if _, ingestErr := ing.IngestFile(ctx, path); ingestErr != nil {
			if ing.logger != nil {
				ing.logger.Warn("skipping file", zap.String("path", path), zap.Error(ingestErr))
			}
			return nil
		}
		ingested++
		return nil
	})
	if err != nil {
		return ingested, fmt.Errorf("walk directory: %w", err)
	}
	return ingested, nil
}
