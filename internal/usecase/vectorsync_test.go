package usecase

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"

	"Costbook/internal/domain"
	"Costbook/internal/ports"
)

type syncCatalog struct {
	*memCatalog
	refs  []domain.RecipeRef
	index *batchIndex
}

func (c *syncCatalog) MissingVectors(_ context.Context, limit int) ([]domain.RecipeRef, error) {
	var missing []domain.RecipeRef
	for _, ref := range c.refs {
		if !c.index.stored[ref.ID] {
			missing = append(missing, ref)
		}
		if len(missing) == limit {
			break
		}
	}
	return missing, nil
}

type batchIndex struct {
	stored  map[uuid.UUID]bool
	batches int
	err     error
}

func (x *batchIndex) Upsert(context.Context, uuid.UUID, []float32) error { return nil }
func (x *batchIndex) UpsertBatch(_ context.Context, entries []ports.IndexEntry) error {
	if x.err != nil {
		return x.err
	}
	x.batches++
	for _, e := range entries {
		x.stored[e.RecipeID] = true
	}
	return nil
}
func (x *batchIndex) Nearest(context.Context, []float32, int) ([]ports.Neighbor, error) {
	return nil, nil
}

type stubEmbedder struct {
	err   error
	calls int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *stubEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int { return 1 }

func syncRefs(n int) []domain.RecipeRef {
	refs := make([]domain.RecipeRef, n)
	for i := range refs {
		refs[i] = domain.RecipeRef{ID: uuid.New(), Description: "item"}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID.String() < refs[j].ID.String() })
	return refs
}

func TestVectorSyncRegistersAllMissing(t *testing.T) {
	t.Parallel()

	index := &batchIndex{stored: map[uuid.UUID]bool{}}
	catalog := &syncCatalog{memCatalog: newMemCatalog(), refs: syncRefs(5), index: index}
	embedder := &stubEmbedder{}

	registered, err := NewVectorSync(catalog, embedder, index, 2, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if registered != 5 {
		t.Fatalf("registered = %d, want 5", registered)
	}
	if index.batches != 3 {
		t.Fatalf("batches = %d, want 3 for batch size 2", index.batches)
	}
	if len(index.stored) != 5 {
		t.Fatalf("stored = %d vectors, want 5", len(index.stored))
	}
}

func TestVectorSyncNothingMissing(t *testing.T) {
	t.Parallel()

	index := &batchIndex{stored: map[uuid.UUID]bool{}}
	catalog := &syncCatalog{memCatalog: newMemCatalog(), index: index}

	registered, err := NewVectorSync(catalog, &stubEmbedder{}, index, 10, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if registered != 0 {
		t.Fatalf("registered = %d, want 0", registered)
	}
}

func TestVectorSyncProviderFailureAborts(t *testing.T) {
	t.Parallel()

	index := &batchIndex{stored: map[uuid.UUID]bool{}}
	catalog := &syncCatalog{memCatalog: newMemCatalog(), refs: syncRefs(4), index: index}
	embedder := &stubEmbedder{err: errors.New("quota exceeded")}

	if _, err := NewVectorSync(catalog, embedder, index, 2, nil).Run(context.Background()); err == nil {
		t.Fatal("provider failure must abort the session")
	}
	if len(index.stored) != 0 {
		t.Fatal("no vector may land from a failed batch")
	}
}

func TestVectorSyncBatchFailureKeepsCommitted(t *testing.T) {
	t.Parallel()

	index := &batchIndex{stored: map[uuid.UUID]bool{}}
	catalog := &syncCatalog{memCatalog: newMemCatalog(), refs: syncRefs(4), index: index}
	embedder := &stubEmbedder{}

	sync := NewVectorSync(catalog, embedder, index, 2, nil)

	// First batch commits, then the index goes down.
	ctx := context.Background()
	refs, _ := catalog.MissingVectors(ctx, 2)
	vectors, _ := embedder.EmbedMany(ctx, []string{refs[0].Description, refs[1].Description})
	_ = index.UpsertBatch(ctx, []ports.IndexEntry{
		{RecipeID: refs[0].ID, Vector: vectors[0]},
		{RecipeID: refs[1].ID, Vector: vectors[1]},
	})
	index.err = errors.New("index down")

	if _, err := sync.Run(ctx); err == nil {
		t.Fatal("index failure must abort the session")
	}
	if len(index.stored) != 2 {
		t.Fatalf("stored = %d, want the 2 committed vectors kept", len(index.stored))
	}
}
