package vecindex

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"Costbook/internal/ports"
)

func TestMemoryIndexNearest(t *testing.T) {
	t.Parallel()

	index := NewMemoryIndex()
	ctx := context.Background()

	near := uuid.New()
	far := uuid.New()
	if err := index.Upsert(ctx, near, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := index.Upsert(ctx, far, []float32{10, 0}); err != nil {
		t.Fatal(err)
	}

	neighbors, err := index.Nearest(ctx, []float32{1.1, 0}, 1)
	if err != nil {
		t.Fatalf("Nearest error: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].RecipeID != near {
		t.Fatalf("neighbors = %+v, want the close vector", neighbors)
	}
	if neighbors[0].Distance > 0.2 {
		t.Fatalf("distance = %v, want ~0.1", neighbors[0].Distance)
	}
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	t.Parallel()

	index := NewMemoryIndex()
	ctx := context.Background()
	id := uuid.New()

	if err := index.Upsert(ctx, id, []float32{0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := index.Upsert(ctx, id, []float32{5, 0}); err != nil {
		t.Fatal(err)
	}

	neighbors, err := index.Nearest(ctx, []float32{5, 0}, 10)
	if err != nil {
		t.Fatalf("Nearest error: %v", err)
	}
	if len(neighbors) != 1 {
		t.Fatalf("entries = %d, want 1 after replacement", len(neighbors))
	}
	if neighbors[0].Distance != 0 {
		t.Fatalf("distance = %v, want 0", neighbors[0].Distance)
	}
}

func TestMemoryIndexUpsertBatch(t *testing.T) {
	t.Parallel()

	index := NewMemoryIndex()
	ctx := context.Background()

	entries := []ports.IndexEntry{
		{RecipeID: uuid.New(), Vector: []float32{1}},
		{RecipeID: uuid.New(), Vector: []float32{2}},
		{RecipeID: uuid.New(), Vector: []float32{3}},
	}
	if err := index.UpsertBatch(ctx, entries); err != nil {
		t.Fatalf("UpsertBatch error: %v", err)
	}

	neighbors, err := index.Nearest(ctx, []float32{2}, 10)
	if err != nil {
		t.Fatalf("Nearest error: %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("entries = %d, want 3", len(neighbors))
	}
	if neighbors[0].RecipeID != entries[1].RecipeID {
		t.Fatalf("nearest = %s, want the middle vector", neighbors[0].RecipeID)
	}
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	t.Parallel()

	index := NewMemoryIndex()
	ctx := context.Background()
	if err := index.Upsert(ctx, uuid.New(), []float32{1, 2}); err != nil {
		t.Fatal(err)
	}

	if _, err := index.Nearest(ctx, []float32{1}, 1); err == nil {
		t.Fatal("mismatched query dimension must be an error")
	}
}
