package vector

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// fakeStore is an in-memory PassageStore for index tests.
type fakeStore struct {
	existed  bool
	passages []string
	failNext bool
}

func (f *fakeStore) Existed() bool { return f.existed }

func (f *fakeStore) All(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.passages...), nil
}

func (f *fakeStore) ReplaceAll(ctx context.Context, passages []string) error {
	if f.failNext {
		f.failNext = false
		return errors.New("store failure")
	}
	f.passages = append([]string(nil), passages...)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestIndex(t *testing.T, dimensions int) (*Index, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	idx, err := Open(context.Background(), dimensions, filepath.Join(t.TempDir(), "vectors.bin"), store)
	if err != nil {
		t.Fatal(err)
	}
	return idx, store
}

func TestIndex_InsertSearch(t *testing.T) {
	idx, _ := newTestIndex(t, 3)
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	passages := []string{"a", "b", "c"}
	if err := idx.Insert(ctx, vecs, passages); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Text != "a" {
		t.Errorf("top result should be a, got %s", results[0].Text)
	}
	if results[1].Text != "b" {
		t.Errorf("second result should be b, got %s", results[1].Text)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not in descending score order")
	}
}

func TestIndex_SearchOrdering(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	ctx := context.Background()
	vecs := [][]float32{{0, 1}, {1, 0}, {1, 1}, {-1, 0}}
	passages := []string{"p0", "p1", "p2", "p3"}
	if err := idx.Insert(ctx, vecs, passages); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("result %d score %f exceeds previous %f", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestIndex_TieBrokenByInsertionOrder(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	ctx := context.Background()
	// Two identical vectors: the earlier insertion must rank first.
	if err := idx.Insert(ctx, [][]float32{{1, 0}, {1, 0}}, []string{"first", "second"}); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Text != "first" || results[1].Text != "second" {
		t.Errorf("tie not broken by insertion order: %v", results)
	}
}

func TestIndex_TopKBound(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	ctx := context.Background()
	if err := idx.Insert(ctx, [][]float32{{1, 0}, {0, 1}}, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results when top_k exceeds size, got %d", len(results))
	}
}

func TestIndex_SearchEmpty(t *testing.T) {
	idx, _ := newTestIndex(t, 4)
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty index should return no results, got %d", len(results))
	}
}

func TestIndex_SearchInvalidTopK(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	if _, err := idx.Search(context.Background(), []float32{1, 0}, 0); !errors.Is(err, ErrInvalidTopK) {
		t.Errorf("expected ErrInvalidTopK, got %v", err)
	}
}

func TestIndex_InsertDimensionMismatch(t *testing.T) {
	idx, _ := newTestIndex(t, 3)
	ctx := context.Background()
	err := idx.Insert(ctx, [][]float32{{1, 0, 0}, {1, 0}}, []string{"ok", "bad"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	// All-or-nothing: the valid vector must not have been appended.
	if idx.Size() != 0 {
		t.Errorf("index mutated on failed insert: size=%d", idx.Size())
	}
}

func TestIndex_InsertCountMismatch(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	err := idx.Insert(context.Background(), [][]float32{{1, 0}}, []string{"a", "b"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected error on count mismatch, got %v", err)
	}
}

func TestIndex_AlignmentInvariant(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := idx.Insert(ctx, [][]float32{{float32(i), 1}}, []string{"p"}); err != nil {
			t.Fatal(err)
		}
		idx.mu.RLock()
		if len(idx.vectors) != len(idx.passages) {
			t.Fatalf("alignment broken: %d vectors, %d passages", len(idx.vectors), len(idx.passages))
		}
		idx.mu.RUnlock()
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	once := append([]float32(nil), v...)
	Normalize(v)
	for i := range v {
		if math.Abs(float64(v[i]-once[i])) > 1e-6 {
			t.Errorf("normalization not idempotent at %d: %f vs %f", i, v[i], once[i])
		}
	}
	if math.Abs(L2Norm(v)-1) > 1e-6 {
		t.Errorf("norm after normalize = %f", L2Norm(v))
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	for i, x := range v {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %f", i, x)
		}
	}
}

func TestIndex_PersistRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")
	store := &fakeStore{}
	ctx := context.Background()

	idx, err := Open(ctx, 3, vectorPath, store)
	if err != nil {
		t.Fatal(err)
	}
	vecs := [][]float32{{1, 0, 0}, {0.5, 0.5, 0}, {0, 0, 1}}
	if err := idx.Insert(ctx, vecs, []string{"x", "y", "z"}); err != nil {
		t.Fatal(err)
	}
	query := []float32{0.7, 0.3, 0}
	before, err := idx.Search(ctx, query, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	store.existed = true
	restored, err := Open(ctx, 3, vectorPath, store)
	if err != nil {
		t.Fatal(err)
	}
	after, err := restored.Search(ctx, query, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("result count changed: %d vs %d", len(after), len(before))
	}
	for i := range before {
		if after[i].Text != before[i].Text {
			t.Errorf("result %d text changed: %q vs %q", i, after[i].Text, before[i].Text)
		}
		if math.Abs(after[i].Score-before[i].Score) > 1e-6 {
			t.Errorf("result %d score changed: %f vs %f", i, after[i].Score, before[i].Score)
		}
	}
}

func TestOpen_OnlyVectorFile(t *testing.T) {
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")
	ctx := context.Background()

	idx, err := Open(ctx, 2, vectorPath, &fakeStore{})
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, [][]float32{{1, 0}}, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	// Vector file exists but the passage store claims a fresh database.
	if _, err := Open(ctx, 2, vectorPath, &fakeStore{existed: false}); !errors.Is(err, ErrCorruptState) {
		t.Errorf("expected ErrCorruptState for partial state, got %v", err)
	}
}

func TestOpen_OnlyPassageStore(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{existed: true, passages: []string{"a"}}
	if _, err := Open(context.Background(), 2, filepath.Join(dir, "vectors.bin"), store); !errors.Is(err, ErrCorruptState) {
		t.Errorf("expected ErrCorruptState for partial state, got %v", err)
	}
}

func TestOpen_EmptyStoreWithoutVectorFile(t *testing.T) {
	// The store file is created on open even when nothing is ever ingested,
	// while the vector file only appears on the first Persist. Reopening
	// after such a run must yield an empty index, not a corrupt-state error.
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")
	ctx := context.Background()

	idx, err := Open(ctx, 2, vectorPath, &fakeStore{existed: true})
	if err != nil {
		t.Fatalf("reopen after empty run failed: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d, want 0", idx.Size())
	}
	// The index must be fully usable afterwards.
	if err := idx.Insert(ctx, [][]float32{{1, 0}}, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")
	store := &fakeStore{}
	ctx := context.Background()

	idx, err := Open(ctx, 2, vectorPath, store)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, [][]float32{{1, 0}, {0, 1}}, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	store.existed = true
	store.passages = []string{"a"} // one passage lost
	if _, err := Open(ctx, 2, vectorPath, store); !errors.Is(err, ErrCorruptState) {
		t.Errorf("expected ErrCorruptState for count mismatch, got %v", err)
	}
}

func TestOpen_DimensionMismatchInFile(t *testing.T) {
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")
	store := &fakeStore{}
	ctx := context.Background()

	idx, err := Open(ctx, 2, vectorPath, store)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, [][]float32{{1, 0}}, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	store.existed = true
	if _, err := Open(ctx, 3, vectorPath, store); !errors.Is(err, ErrCorruptState) {
		t.Errorf("expected ErrCorruptState for dimension mismatch, got %v", err)
	}
}

func TestIndex_PersistStoreFailureKeepsVectorFile(t *testing.T) {
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")
	store := &fakeStore{}
	ctx := context.Background()

	idx, err := Open(ctx, 2, vectorPath, store)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, [][]float32{{1, 0}}, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	store.failNext = true
	if err := idx.Persist(ctx); err == nil {
		t.Fatal("expected persist to fail")
	}
	// The vector file must not have been published ahead of the store.
	if _, err := os.Stat(vectorPath); !os.IsNotExist(err) {
		t.Errorf("vector file published despite store failure: %v", err)
	}
}
