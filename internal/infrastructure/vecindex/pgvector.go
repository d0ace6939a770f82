package vecindex

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"Costbook/internal/ports"
)

// PgVectorIndex stores recipe embeddings in a pgvector column and answers
// nearest-neighbor queries with the L2 distance operator.
type PgVectorIndex struct {
	db        *sql.DB
	dimension int
}

var _ ports.VectorIndex = (*PgVectorIndex)(nil)

// NewPgVectorIndex wires the index over an open connection pool.
func NewPgVectorIndex(db *sql.DB, dimension int) *PgVectorIndex {
	return &PgVectorIndex{db: db, dimension: dimension}
}

// Upsert writes or replaces the vector of one recipe.
func (x *PgVectorIndex) Upsert(ctx context.Context, recipeID uuid.UUID, vector []float32) error {
	if err := x.checkDimension(vector); err != nil {
		return err
	}
	if _, err := x.db.ExecContext(ctx,
		`INSERT INTO recipe_vectors (recipe_id, embedding) VALUES ($1, $2::vector)
		 ON CONFLICT (recipe_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		recipeID, vectorLiteral(vector),
	); err != nil {
		return fmt.Errorf("upsert vector for %s: %w", recipeID, err)
	}
	return nil
}

// UpsertBatch writes a batch of vectors in one transaction, so either the
// whole batch lands or none of it does.
func (x *PgVectorIndex) UpsertBatch(ctx context.Context, entries []ports.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := x.checkDimension(e.Vector); err != nil {
			return err
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vector batch: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_vectors (recipe_id, embedding) VALUES ($1, $2::vector)
			 ON CONFLICT (recipe_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
			e.RecipeID, vectorLiteral(e.Vector),
		); err != nil {
			return fmt.Errorf("upsert vector for %s: %w", e.RecipeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vector batch: %w", err)
	}
	return nil
}

// Nearest returns up to k indexed recipes ordered by L2 distance.
func (x *PgVectorIndex) Nearest(ctx context.Context, vector []float32, k int) ([]ports.Neighbor, error) {
	if err := x.checkDimension(vector); err != nil {
		return nil, err
	}

	rows, err := x.db.QueryContext(ctx,
		`SELECT recipe_id, embedding <-> $1::vector AS distance
		 FROM recipe_vectors
		 ORDER BY distance
		 LIMIT $2`,
		vectorLiteral(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("nearest query: %w", err)
	}
	defer rows.Close()

	var neighbors []ports.Neighbor
	for rows.Next() {
		var n ports.Neighbor
		if err := rows.Scan(&n.RecipeID, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("neighbor rows: %w", err)
	}
	return neighbors, nil
}

func (x *PgVectorIndex) checkDimension(vector []float32) error {
	if x.dimension > 0 && len(vector) != x.dimension {
		return fmt.Errorf("vector dimension %d, index expects %d", len(vector), x.dimension)
	}
	return nil
}

// vectorLiteral renders the pgvector input syntax: "[v1,v2,...]".
func vectorLiteral(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
