package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"Costbook/internal/domain"
	"Costbook/internal/ports"
)

// PostgresCatalog persists recipes, components and price history. Every
// write entry point commits in a single transaction so a recipe is never
// readable half-updated.
type PostgresCatalog struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.Catalog = (*PostgresCatalog)(nil)

// NewPostgresCatalog wires a sql.DB implementation.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the relational schema and the vector table sized to
// the configured embedding dimension.
func (c *PostgresCatalog) EnsureSchema(ctx context.Context, dimension int) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS recipes (
			id UUID PRIMARY KEY,
			code TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			unit_material_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			unit_manpower_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			source_file TEXT NOT NULL DEFAULT '',
			volatility_index DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_complex_assembly BOOLEAN NOT NULL DEFAULT FALSE,
			confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_price_date TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS components (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			recipe_id UUID NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			code TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT 'MAT',
			qty_coefficient DOUBLE PRECISION NOT NULL DEFAULT 0,
			unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_calculated_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id BIGSERIAL PRIMARY KEY,
			component_id UUID NOT NULL REFERENCES components(id) ON DELETE CASCADE,
			raw_price DOUBLE PRECISION NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			source_file TEXT NOT NULL DEFAULT '',
			reliability_score DOUBLE PRECISION NOT NULL DEFAULT 1.0
		)`,
		`CREATE TABLE IF NOT EXISTS ingested_files (
			filename TEXT PRIMARY KEY,
			file_hash TEXT NOT NULL DEFAULT '',
			import_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			status TEXT NOT NULL DEFAULT '',
			recipes_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS recipe_vectors (
			recipe_id UUID PRIMARY KEY REFERENCES recipes(id) ON DELETE CASCADE,
			embedding vector(%d)
		)`, dimension),
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// VectorDimension reads the dimension the vector column was created with,
// or 0 when the column does not exist yet. pgvector stores the dimension as
// the column's type modifier.
func (c *PostgresCatalog) VectorDimension(ctx context.Context) (int, error) {
	var typmod sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		`SELECT a.atttypmod
		 FROM pg_attribute a
		 JOIN pg_class t ON t.oid = a.attrelid
		 WHERE t.relname = 'recipe_vectors' AND a.attname = 'embedding'`,
	).Scan(&typmod)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read vector dimension: %w", err)
	}
	if !typmod.Valid || typmod.Int64 < 0 {
		return 0, nil
	}
	return int(typmod.Int64), nil
}

// RecipeByID loads a recipe with its components in stored order.
func (c *PostgresCatalog) RecipeByID(ctx context.Context, id uuid.UUID) (domain.Recipe, error) {
	query, args, err := c.sb.
		Select("id", "code", "description", "unit_material_price", "unit_manpower_price",
			"source_file", "volatility_index", "is_complex_assembly", "confidence_score", "last_price_date").
		From("recipes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("build recipe query: %w", err)
	}

	var rec domain.Recipe
	var pricedAt sql.NullTime
	err = c.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.ID, &rec.Code, &rec.Description, &rec.UnitMaterialPrice, &rec.UnitManpowerPrice,
		&rec.SourceFile, &rec.VolatilityIndex, &rec.IsComplexAssembly, &rec.ConfidenceScore, &pricedAt,
	)
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("query recipe %s: %w", id, err)
	}
	if pricedAt.Valid {
		rec.LastPricedAt = pricedAt.Time
	}

	components, err := c.componentsOf(ctx, id)
	if err != nil {
		return domain.Recipe{}, err
	}
	rec.Components = components

	return rec, nil
}

// RecipeIDs lists all recipe identifiers.
func (c *PostgresCatalog) RecipeIDs(ctx context.Context) ([]uuid.UUID, error) {
	query, args, err := c.sb.Select("id").From("recipes").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ids query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recipe ids: %w", err)
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, closeRows(rows)
}

// RecipeHistory loads the full ordered price history of every component of
// the recipe, keyed by component id.
func (c *PostgresCatalog) RecipeHistory(ctx context.Context, id uuid.UUID) (map[uuid.UUID][]domain.PriceObservation, error) {
	query, args, err := c.sb.
		Select("h.component_id", "h.raw_price", "h.observed_at", "h.source_file", "h.reliability_score").
		From("price_history h").
		Join("components c ON c.id = h.component_id").
		Where(sq.Eq{"c.recipe_id": id}).
		OrderBy("h.observed_at ASC", "h.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history for recipe %s: %w", id, err)
	}

	history := make(map[uuid.UUID][]domain.PriceObservation)
	for rows.Next() {
		var obs domain.PriceObservation
		if err := rows.Scan(&obs.ComponentID, &obs.RawPrice, &obs.ObservedAt, &obs.SourceFile, &obs.Reliability); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		history[obs.ComponentID] = append(history[obs.ComponentID], obs)
	}
	return history, closeRows(rows)
}

// CreateRecipe commits a branched recipe, its components and their first
// observations atomically.
func (c *PostgresCatalog) CreateRecipe(ctx context.Context, rec domain.Recipe, obs []domain.PriceObservation) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	if err := c.insertRecipe(ctx, tx, rec); err != nil {
		return err
	}
	for _, comp := range rec.Components {
		if err := c.insertComponent(ctx, tx, comp); err != nil {
			return err
		}
	}
	if err := c.insertObservations(ctx, tx, obs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

// UpdateRecipe commits a merge or reprice atomically: new components are
// inserted, new observations appended, and every cached price plus the
// recipe-level caches rewritten.
func (c *PostgresCatalog) UpdateRecipe(ctx context.Context, rec domain.Recipe, newComponents []domain.Component, obs []domain.PriceObservation) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	for _, comp := range newComponents {
		if err := c.insertComponent(ctx, tx, comp); err != nil {
			return err
		}
	}
	if err := c.insertObservations(ctx, tx, obs); err != nil {
		return err
	}

	inserted := make(map[uuid.UUID]bool, len(newComponents))
	for _, comp := range newComponents {
		inserted[comp.ID] = true
	}
	for _, comp := range rec.Components {
		if inserted[comp.ID] {
			continue
		}
		query, args, err := c.sb.
			Update("components").
			Set("unit_price", comp.UnitPrice).
			Set("last_calculated_at", comp.LastCalculatedAt).
			Where(sq.Eq{"id": comp.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build component update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update component %s: %w", comp.ID, err)
		}
	}

	query, args, err := c.sb.
		Update("recipes").
		Set("unit_material_price", rec.UnitMaterialPrice).
		Set("unit_manpower_price", rec.UnitManpowerPrice).
		Set("volatility_index", rec.VolatilityIndex).
		Set("is_complex_assembly", rec.IsComplexAssembly).
		Set("confidence_score", rec.ConfidenceScore).
		Set("last_price_date", rec.LastPricedAt).
		Where(sq.Eq{"id": rec.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build recipe update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update recipe %s: %w", rec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// DeleteBySource removes all recipes loaded from a source document; the
// schema cascades to components, history and vectors. Used when a tracked
// file arrives changed and must be reloaded.
func (c *PostgresCatalog) DeleteBySource(ctx context.Context, sourceFile string) error {
	query, args, err := c.sb.Delete("recipes").Where(sq.Eq{"source_file": sourceFile}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete recipes of %s: %w", sourceFile, err)
	}
	return nil
}

// MissingVectors lists recipes that have no index entry yet, up to limit.
func (c *PostgresCatalog) MissingVectors(ctx context.Context, limit int) ([]domain.RecipeRef, error) {
	query, args, err := c.sb.
		Select("r.id", "r.description").
		From("recipes r").
		LeftJoin("recipe_vectors v ON v.recipe_id = r.id").
		Where("v.recipe_id IS NULL").
		OrderBy("r.id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build missing vectors query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query missing vectors: %w", err)
	}

	var refs []domain.RecipeRef
	for rows.Next() {
		var ref domain.RecipeRef
		if err := rows.Scan(&ref.ID, &ref.Description); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan recipe ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, closeRows(rows)
}

func (c *PostgresCatalog) componentsOf(ctx context.Context, recipeID uuid.UUID) ([]domain.Component, error) {
	query, args, err := c.sb.
		Select("id", "recipe_id", "code", "description", "kind", "qty_coefficient", "unit_price", "last_calculated_at").
		From("components").
		Where(sq.Eq{"recipe_id": recipeID}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build components query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query components of %s: %w", recipeID, err)
	}

	var components []domain.Component
	for rows.Next() {
		var comp domain.Component
		var calcAt sql.NullTime
		if err := rows.Scan(&comp.ID, &comp.RecipeID, &comp.Code, &comp.Description,
			&comp.Kind, &comp.QtyCoefficient, &comp.UnitPrice, &calcAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan component: %w", err)
		}
		if calcAt.Valid {
			comp.LastCalculatedAt = calcAt.Time
		}
		components = append(components, comp)
	}
	return components, closeRows(rows)
}

func (c *PostgresCatalog) insertRecipe(ctx context.Context, tx *sql.Tx, rec domain.Recipe) error {
	query, args, err := c.sb.
		Insert("recipes").
		Columns("id", "code", "description", "unit_material_price", "unit_manpower_price",
			"source_file", "volatility_index", "is_complex_assembly", "confidence_score", "last_price_date").
		Values(rec.ID, rec.Code, rec.Description, rec.UnitMaterialPrice, rec.UnitManpowerPrice,
			rec.SourceFile, rec.VolatilityIndex, rec.IsComplexAssembly, rec.ConfidenceScore, rec.LastPricedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build recipe insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert recipe %s: %w", rec.ID, err)
	}
	return nil
}

func (c *PostgresCatalog) insertComponent(ctx context.Context, tx *sql.Tx, comp domain.Component) error {
	query, args, err := c.sb.
		Insert("components").
		Columns("id", "recipe_id", "code", "description", "kind", "qty_coefficient", "unit_price", "last_calculated_at").
		Values(comp.ID, comp.RecipeID, comp.Code, comp.Description, comp.Kind,
			comp.QtyCoefficient, comp.UnitPrice, comp.LastCalculatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build component insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert component %s: %w", comp.ID, err)
	}
	return nil
}

func (c *PostgresCatalog) insertObservations(ctx context.Context, tx *sql.Tx, obs []domain.PriceObservation) error {
	for _, o := range obs {
		query, args, err := c.sb.
			Insert("price_history").
			Columns("component_id", "raw_price", "observed_at", "source_file", "reliability_score").
			Values(o.ComponentID, o.RawPrice, o.ObservedAt, o.SourceFile, o.Reliability).
			ToSql()
		if err != nil {
			return fmt.Errorf("build observation insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert observation for %s: %w", o.ComponentID, err)
		}
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close rows: %w", err)
	}
	return nil
}
