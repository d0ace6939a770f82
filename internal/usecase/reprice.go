package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Costbook/internal/ports"
	"Costbook/internal/pricing"
)

// Repricer recomputes every cached price in the catalog from raw history
// with the configured strategy. History is never modified, so the operation
// is repeatable.
type Repricer struct {
	catalog ports.Catalog
	engine  pricing.Engine
	logger  *slog.Logger
	now     func() time.Time
}

// NewRepricer wires the repricer.
func NewRepricer(catalog ports.Catalog, engine pricing.Engine, logger *slog.Logger) *Repricer {
	return &Repricer{
		catalog: catalog,
		engine:  engine,
		logger:  logger,
		now:     time.Now,
	}
}

// Run reprices the whole catalog and returns the number of updated recipes.
// A recipe that fails to load or persist is logged and skipped so one broken
// row never blocks the rest.
func (r *Repricer) Run(ctx context.Context) (int, error) {
	ids, err := r.catalog.RecipeIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recipes: %w", err)
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		rec, err := r.catalog.RecipeByID(ctx, id)
		if err != nil {
			r.warn("recipe not loaded, skipped", "recipe", id, "error", err)
			continue
		}
		history, err := r.catalog.RecipeHistory(ctx, id)
		if err != nil {
			r.warn("history not loaded, recipe skipped", "recipe", id, "error", err)
			continue
		}

		now := r.now().UTC()
		for i := range rec.Components {
			obs := history[rec.Components[i].ID]
			if len(obs) == 0 {
				continue
			}
			rec.Components[i].UnitPrice = r.engine.UnitPrice(obs, now)
			rec.Components[i].LastCalculatedAt = now
		}

		volatility := pricing.Volatility(rec.Components, history)
		rec.UnitMaterialPrice = pricing.MaterialUnitPrice(rec.Components)
		rec.UnitManpowerPrice = pricing.ManpowerUnitPrice(rec.Components)
		rec.VolatilityIndex = volatility
		rec.IsComplexAssembly = pricing.IsComplex(volatility)
		rec.LastPricedAt = now

		if err := r.catalog.UpdateRecipe(ctx, rec, nil, nil); err != nil {
			r.warn("reprice not persisted", "recipe", id, "error", err)
			continue
		}
		updated++
	}

	if r.logger != nil {
		r.logger.Info("reprice done", "recipes", updated, "of", len(ids))
	}
	return updated, nil
}

func (r *Repricer) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
