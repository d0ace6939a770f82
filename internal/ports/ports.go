package ports

import (
	"context"

	"github.com/google/uuid"

	"Costbook/internal/domain"
)

// RecordSource yields extracted source documents ready for assembly.
type RecordSource interface {
	FetchDocuments(ctx context.Context) ([]domain.Document, error)
}

// Embedder turns free text into fixed-dimension vectors. EmbedMany preserves
// input order and may be served in bounded provider batches internally.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// EquivalenceJudge arbitrates whether two descriptions name the same
// priceable item. It may be slow or unreliable; callers fall back to
// non-equivalence on error.
type EquivalenceJudge interface {
	Judge(ctx context.Context, candidate, existing string) (equivalent bool, rationale string, err error)
}

// Neighbor is one nearest-neighbor hit from the vector index. Distance is
// raw index distance; converting it to a similarity belongs to the resolver.
type Neighbor struct {
	RecipeID uuid.UUID
	Distance float64
}

// IndexEntry pairs a recipe with its embedding for batch registration.
type IndexEntry struct {
	RecipeID uuid.UUID
	Vector   []float32
}

// VectorIndex stores recipe embeddings and answers nearest-neighbor queries
// ordered ascending by distance. UpsertBatch commits all entries or none.
type VectorIndex interface {
	Upsert(ctx context.Context, id uuid.UUID, vector []float32) error
	UpsertBatch(ctx context.Context, entries []IndexEntry) error
	Nearest(ctx context.Context, vector []float32, k int) ([]Neighbor, error)
}

// Matcher decides MERGE versus BRANCH for a candidate description. The
// returned vector is the candidate's embedding when one was computed, for
// later index registration.
type Matcher interface {
	Resolve(ctx context.Context, description string) (domain.ResolvedMatch, []float32, error)
}

// Catalog persists recipes, components and their price history. CreateRecipe
// and UpdateRecipe are each a single atomic commit so no reader observes a
// half-updated recipe.
type Catalog interface {
	RecipeByID(ctx context.Context, id uuid.UUID) (domain.Recipe, error)
	RecipeIDs(ctx context.Context) ([]uuid.UUID, error)
	RecipeHistory(ctx context.Context, id uuid.UUID) (map[uuid.UUID][]domain.PriceObservation, error)
	CreateRecipe(ctx context.Context, rec domain.Recipe, obs []domain.PriceObservation) error
	UpdateRecipe(ctx context.Context, rec domain.Recipe, newComponents []domain.Component, obs []domain.PriceObservation) error
	DeleteBySource(ctx context.Context, sourceFile string) error
	MissingVectors(ctx context.Context, limit int) ([]domain.RecipeRef, error)
}

// SourceTracker remembers which documents were already ingested so re-runs
// over the same files are idempotent.
type SourceTracker interface {
	Status(ctx context.Context, filename, hash string) (domain.SourceStatus, error)
	Record(ctx context.Context, filename, hash, status string, recipes int) error
}
