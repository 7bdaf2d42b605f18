package vector

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
)

// PassageStore persists the text side of the index. The SQLite implementation
// lives in internal/storage; the index only needs the full-snapshot view.
type PassageStore interface {
	// Existed reports whether the backing file was present before the store was opened.
	Existed() bool
	All(ctx context.Context) ([]string, error)
	ReplaceAll(ctx context.Context, passages []string) error
	Close() error
}

// SearchResult is a single retrieval hit: a stored passage and its cosine
// similarity to the query (inner product of normalized vectors, range [-1, 1]).
type SearchResult struct {
	Score float64
	Text  string
}

// Index stores passage vectors and their source texts in insertion order and
// runs exact brute-force similarity search over them.
//
// The central invariant is alignment: vectors[i] is the embedding of
// passages[i], for every i. Both slices are append-only and never exposed for
// outside mutation. Search is O(size × dimensions) per query, which is fine
// for a corpus small enough to fit in memory.
type Index struct {
	dimensions int
	vectorPath string
	store      PassageStore

	mu       sync.RWMutex
	vectors  [][]float32
	passages []string
}

// Open creates an index backed by the vector file at vectorPath and the given
// passage store, restoring persisted state when present.
//
// If neither artifact holds data the index starts empty. The store file is
// created eagerly on open while the vector file only appears on the first
// Persist, so a present-but-empty store without a vector file is still a
// fresh start. Anything else one-sided, or a count disagreement, fails with
// ErrCorruptState: the two artifacts are only meaningful as a pair and a
// partial state is ambiguous.
func Open(ctx context.Context, dimensions int, vectorPath string, store PassageStore) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	idx := &Index{
		dimensions: dimensions,
		vectorPath: vectorPath,
		store:      store,
		vectors:    make([][]float32, 0),
		passages:   make([]string, 0),
	}

	vecExists := false
	if _, err := os.Stat(vectorPath); err == nil {
		vecExists = true
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat vector file: %w", err)
	}
	storeExists := store.Existed()

	if !vecExists && !storeExists {
		return idx, nil
	}
	if !vecExists {
		passages, err := store.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("load passages: %w", err)
		}
		if len(passages) == 0 {
			// A run that ingested nothing leaves the store file behind but
			// never writes the vector file. Not a torn state.
			return idx, nil
		}
		return nil, fmt.Errorf("%w: passage store has %d passages but no vector file",
			ErrCorruptState, len(passages))
	}
	if !storeExists {
		return nil, fmt.Errorf("%w: vector file present but passage store missing",
			ErrCorruptState)
	}

	vectors, err := readVectorFile(vectorPath, dimensions)
	if err != nil {
		return nil, err
	}
	passages, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("%w: %d vectors but %d passages",
			ErrCorruptState, len(vectors), len(passages))
	}
	idx.vectors = vectors
	idx.passages = passages
	return idx, nil
}

// Insert appends the vectors and their passages to the index, preserving
// alignment. Vectors are copied and normalized to unit L2 norm before storage.
// All inputs are validated first; on any mismatch the index is unchanged.
func (idx *Index) Insert(ctx context.Context, vectors [][]float32, passages []string) error {
	if len(vectors) != len(passages) {
		return fmt.Errorf("%w: %d vectors for %d passages", ErrDimensionMismatch, len(vectors), len(passages))
	}
	for i, vec := range vectors {
		if len(vec) != idx.dimensions {
			return fmt.Errorf("%w: vector %d has %d dimensions, index expects %d",
				ErrDimensionMismatch, i, len(vec), idx.dimensions)
		}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, vec := range vectors {
		v := make([]float32, idx.dimensions)
		copy(v, vec)
		Normalize(v)
		idx.vectors = append(idx.vectors, v)
		idx.passages = append(idx.passages, passages[i])
	}
	return nil
}

// Search returns the topK stored passages most similar to query, in
// descending score order. Ties are broken by insertion order. An empty index
// yields an empty result. topK is capped at the index size.
func (idx *Index) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if topK < 1 {
		return nil, ErrInvalidTopK
	}
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			ErrDimensionMismatch, len(query), idx.dimensions)
	}
	q := make([]float32, idx.dimensions)
	copy(q, query)
	Normalize(q)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.vectors) == 0 {
		return nil, nil
	}
	results := make([]SearchResult, len(idx.vectors))
	for i, vec := range idx.vectors {
		results[i] = SearchResult{Score: InnerProduct(q, vec), Text: idx.passages[i]}
	}
	// Stable sort keeps earlier insertions first on equal scores.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Persist writes both index artifacts. The vector file is written to a
// temporary path first, the passage store is replaced in a single transaction,
// and the vector file is published (renamed) last. A crash between the commit
// and the rename leaves mismatched counts, which Open rejects instead of
// serving misaligned data.
func (idx *Index) Persist(ctx context.Context) error {
	idx.mu.RLock()
	vectors := idx.vectors
	passages := idx.passages
	idx.mu.RUnlock()

	tmpPath, err := writeVectorFileTemp(idx.vectorPath, idx.dimensions, vectors)
	if err != nil {
		return err
	}
	if err := idx.store.ReplaceAll(ctx, passages); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("persist passages: %w", err)
	}
	if err := os.Rename(tmpPath, idx.vectorPath); err != nil {
		return fmt.Errorf("publish vector file: %w", err)
	}
	return nil
}

// Size returns the number of stored passages.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Dimensions returns the fixed vector dimensionality of the index.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Close releases the passage store.
func (idx *Index) Close() error {
	return idx.store.Close()
}
