package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"Costbook/internal/ports"
)

// VectorSync backfills the vector index for recipes that have no embedding
// yet, in bounded batches. Each batch is embedded and registered
// all-or-nothing; a provider failure aborts the session but batches already
// committed stay committed.
type VectorSync struct {
	catalog   ports.Catalog
	embedder  ports.Embedder
	index     ports.VectorIndex
	batchSize int
	logger    *slog.Logger
}

// NewVectorSync wires the backfill. Batch sizes at or below zero fall back
// to 200.
func NewVectorSync(catalog ports.Catalog, embedder ports.Embedder, index ports.VectorIndex, batchSize int, logger *slog.Logger) *VectorSync {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &VectorSync{
		catalog:   catalog,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run registers vectors until no recipe is missing one, and returns how many
// were registered.
func (s *VectorSync) Run(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		refs, err := s.catalog.MissingVectors(ctx, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("list missing vectors: %w", err)
		}
		if len(refs) == 0 {
			break
		}

		texts := make([]string, len(refs))
		for i, ref := range refs {
			texts[i] = ref.Description
		}

		vectors, err := s.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("embed %d descriptions: %w", len(texts), err)
		}

		entries := make([]ports.IndexEntry, len(refs))
		for i, ref := range refs {
			entries[i] = ports.IndexEntry{RecipeID: ref.ID, Vector: vectors[i]}
		}
		if err := s.index.UpsertBatch(ctx, entries); err != nil {
			return total, fmt.Errorf("register batch of %d vectors: %w", len(entries), err)
		}

		total += len(refs)
		if s.logger != nil {
			s.logger.Debug("vector batch registered", "count", len(refs), "total", total)
		}

		if len(refs) < s.batchSize {
			break
		}
	}

	if s.logger != nil {
		s.logger.Info("vector sync done", "registered", total)
	}
	return total, nil
}
