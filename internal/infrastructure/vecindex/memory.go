package vecindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"Costbook/internal/ports"
)

// MemoryIndex is an in-process VectorIndex with exact L2 search. It serves
// tests and offline runs where no database is available.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[uuid.UUID][]float32
}

var _ ports.VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex builds an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[uuid.UUID][]float32)}
}

// Upsert stores a copy of the vector.
func (x *MemoryIndex) Upsert(_ context.Context, recipeID uuid.UUID, vector []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors[recipeID] = append([]float32(nil), vector...)
	return nil
}

// UpsertBatch stores all entries; the map update is atomic under the lock.
func (x *MemoryIndex) UpsertBatch(_ context.Context, entries []ports.IndexEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entries {
		x.vectors[e.RecipeID] = append([]float32(nil), e.Vector...)
	}
	return nil
}

// Nearest scans every stored vector and returns the k closest.
func (x *MemoryIndex) Nearest(_ context.Context, vector []float32, k int) ([]ports.Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	neighbors := make([]ports.Neighbor, 0, len(x.vectors))
	for id, stored := range x.vectors {
		d, err := l2Distance(vector, stored)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", id, err)
		}
		neighbors = append(neighbors, ports.Neighbor{RecipeID: id, Distance: d})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance == neighbors[j].Distance {
			return neighbors[i].RecipeID.String() < neighbors[j].RecipeID.String()
		}
		return neighbors[i].Distance < neighbors[j].Distance
	})

	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func l2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
