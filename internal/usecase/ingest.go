package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"Costbook/internal/domain"
	"Costbook/internal/infrastructure/storage"
	"Costbook/internal/ports"
	"Costbook/internal/pricing"
	"Costbook/internal/recipe"
	"Costbook/internal/resolver"
)

// Ingestion runs the full pipeline over every configured source document:
// extraction, assembly, semantic resolution, pricing and persistence. One
// broken document or record never fails the run; failures are counted in
// the report and the file is retried on the next run.
type Ingestion struct {
	source    ports.RecordSource
	tracker   ports.SourceTracker
	assembler *recipe.Assembler
	matcher   ports.Matcher
	catalog   ports.Catalog
	index     ports.VectorIndex
	engine    pricing.Engine
	logger    *slog.Logger
	now       func() time.Time
}

// NewIngestion wires the pipeline.
func NewIngestion(
	source ports.RecordSource,
	tracker ports.SourceTracker,
	assembler *recipe.Assembler,
	matcher ports.Matcher,
	catalog ports.Catalog,
	index ports.VectorIndex,
	engine pricing.Engine,
	logger *slog.Logger,
) *Ingestion {
	return &Ingestion{
		source:    source,
		tracker:   tracker,
		assembler: assembler,
		matcher:   matcher,
		catalog:   catalog,
		index:     index,
		engine:    engine,
		logger:    logger,
		now:       time.Now,
	}
}

// Run processes every fetched document and returns the run's counters.
func (i *Ingestion) Run(ctx context.Context) (domain.RunReport, error) {
	var report domain.RunReport

	documents, err := i.source.FetchDocuments(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch documents: %w", err)
	}

	for _, doc := range documents {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		i.ingestDocument(ctx, doc, &report)
	}

	i.info("ingestion done",
		"scanned", report.FilesScanned,
		"skipped", report.FilesSkipped,
		"failed", report.FilesFailed,
		"branched", report.RecipesBranched,
		"merged", report.RecipesMerged,
		"degraded", report.Degraded())

	return report, nil
}

// ingestDocument handles one document end to end, including its tracking
// record. Document-level storage failures mark the file failed and move on.
func (i *Ingestion) ingestDocument(ctx context.Context, doc domain.Document, report *domain.RunReport) {
	status, err := i.tracker.Status(ctx, doc.Name, doc.Hash)
	if err != nil {
		i.warn("tracker lookup failed, file skipped", "file", doc.Name, "error", err)
		report.FilesFailed++
		return
	}

	switch status {
	case domain.SourceSkip:
		i.debug("unchanged file skipped", "file", doc.Name)
		report.FilesSkipped++
		return

	case domain.SourceUpdate:
		// Changed content invalidates everything loaded from this file.
		if err := i.catalog.DeleteBySource(ctx, doc.Name); err != nil {
			i.warn("stale recipes not removed, file skipped", "file", doc.Name, "error", err)
			report.FilesFailed++
			return
		}
		i.info("reloading changed file", "file", doc.Name)
	}

	report.FilesScanned++

	drafts, warnings := i.assembler.Assemble(doc.Rows)
	report.ParseWarnings += len(warnings)

	ingested := 0
	failed := 0
	for _, draft := range drafts {
		if err := i.ingestDraft(ctx, doc, draft, report); err != nil {
			i.warn("record skipped", "file", doc.Name, "code", draft.Code, "error", err)
			report.IntegritySkips++
			failed++
			continue
		}
		ingested++
	}

	trackStatus := storage.StatusSuccess
	switch {
	case failed > 0:
		trackStatus = storage.StatusError
	case ingested == 0:
		trackStatus = storage.StatusWarningZero
	}
	if err := i.tracker.Record(ctx, doc.Name, doc.Hash, trackStatus, ingested); err != nil {
		i.warn("tracking record failed", "file", doc.Name, "error", err)
	}

	i.info("file ingested", "file", doc.Name, "recipes", ingested, "failed", failed)
}

// ingestDraft resolves one draft against the catalog and persists it as a
// merge or a branch.
func (i *Ingestion) ingestDraft(ctx context.Context, doc domain.Document, draft domain.DraftRecipe, report *domain.RunReport) error {
	match, vec, err := i.matcher.Resolve(ctx, draft.Description)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", draft.Code, err)
	}
	if match.Degraded {
		report.ProviderFailures++
	}

	if match.Action == domain.ActionMerge {
		return i.mergeDraft(ctx, doc, draft, match, report)
	}
	return i.branchDraft(ctx, doc, draft, match, vec, report)
}

// branchDraft creates a new recipe from the draft. The whole recipe and its
// first observations are computed in memory and committed in one call; the
// vector registration afterwards is best-effort because the backfill repairs
// missing vectors.
func (i *Ingestion) branchDraft(ctx context.Context, doc domain.Document, draft domain.DraftRecipe, match domain.ResolvedMatch, vec []float32, report *domain.RunReport) error {
	now := i.now().UTC()
	recipeID := uuid.New()

	components := make([]domain.Component, 0, len(draft.Components))
	observations := make([]domain.PriceObservation, 0, len(draft.Components))
	history := make(map[uuid.UUID][]domain.PriceObservation, len(draft.Components))

	for _, dc := range draft.Components {
		comp := domain.Component{
			ID:               uuid.New(),
			RecipeID:         recipeID,
			Code:             dc.Code,
			Description:      dc.Description,
			Kind:             dc.Kind,
			QtyCoefficient:   dc.QtyCoefficient,
			LastCalculatedAt: now,
		}
		obs := domain.PriceObservation{
			ComponentID: comp.ID,
			RawPrice:    dc.UnitPrice,
			ObservedAt:  now,
			SourceFile:  doc.Name,
			Reliability: 1,
		}
		history[comp.ID] = []domain.PriceObservation{obs}
		comp.UnitPrice = i.engine.UnitPrice(history[comp.ID], now)

		components = append(components, comp)
		observations = append(observations, obs)
	}

	volatility := pricing.Volatility(components, history)
	rec := domain.Recipe{
		ID:                recipeID,
		Code:              draft.Code,
		Description:       draft.Description,
		UnitMaterialPrice: pricing.MaterialUnitPrice(components),
		UnitManpowerPrice: pricing.ManpowerUnitPrice(components),
		SourceFile:        doc.Name,
		VolatilityIndex:   volatility,
		IsComplexAssembly: pricing.IsComplex(volatility),
		ConfidenceScore:   branchConfidence(match),
		LastPricedAt:      now,
		Components:        components,
	}

	// Documents sometimes price an item only in the footer; keep those
	// values rather than a zero cache.
	if rec.UnitMaterialPrice == 0 && draft.UnitMaterialPrice > 0 {
		rec.UnitMaterialPrice = draft.UnitMaterialPrice
	}
	if rec.UnitManpowerPrice == 0 && draft.UnitManpowerPrice > 0 {
		rec.UnitManpowerPrice = draft.UnitManpowerPrice
	}

	if err := i.catalog.CreateRecipe(ctx, rec, observations); err != nil {
		return fmt.Errorf("create recipe %q: %w", draft.Code, err)
	}

	if vec != nil {
		if err := i.index.Upsert(ctx, recipeID, vec); err != nil {
			i.warn("vector registration failed, backfill will repair", "recipe", recipeID, "error", err)
			report.ProviderFailures++
		}
	}

	report.RecipesBranched++
	report.ComponentsWritten += len(components)
	report.ObservationsAppended += len(observations)
	return nil
}

// mergeDraft folds the draft into the matched recipe: reconciled components
// gain one observation each, unmatched candidates become new components, and
// every cached price is recomputed over the combined history before a single
// atomic update.
func (i *Ingestion) mergeDraft(ctx context.Context, doc domain.Document, draft domain.DraftRecipe, match domain.ResolvedMatch, report *domain.RunReport) error {
	existing, err := i.catalog.RecipeByID(ctx, match.RecipeID)
	if err != nil {
		return fmt.Errorf("load recipe %s: %w", match.RecipeID, err)
	}
	history, err := i.catalog.RecipeHistory(ctx, existing.ID)
	if err != nil {
		return fmt.Errorf("load history of %s: %w", existing.ID, err)
	}

	now := i.now().UTC()
	pairs, unmatched := resolver.Reconcile(existing.Components, draft.Components)

	var observations []domain.PriceObservation
	for _, pair := range pairs {
		obs := domain.PriceObservation{
			ComponentID: pair.Existing.ID,
			RawPrice:    pair.Draft.UnitPrice,
			ObservedAt:  now,
			SourceFile:  doc.Name,
			Reliability: 1,
		}
		history[obs.ComponentID] = append(history[obs.ComponentID], obs)
		observations = append(observations, obs)
	}

	newComponents := make([]domain.Component, 0, len(unmatched))
	for _, dc := range unmatched {
		comp := domain.Component{
			ID:               uuid.New(),
			RecipeID:         existing.ID,
			Code:             dc.Code,
			Description:      dc.Description,
			Kind:             dc.Kind,
			QtyCoefficient:   dc.QtyCoefficient,
			LastCalculatedAt: now,
		}
		obs := domain.PriceObservation{
			ComponentID: comp.ID,
			RawPrice:    dc.UnitPrice,
			ObservedAt:  now,
			SourceFile:  doc.Name,
			Reliability: 1,
		}
		history[comp.ID] = append(history[comp.ID], obs)
		observations = append(observations, obs)
		newComponents = append(newComponents, comp)
	}

	all := append(append([]domain.Component(nil), existing.Components...), newComponents...)
	for idx := range all {
		if obs := history[all[idx].ID]; len(obs) > 0 {
			all[idx].UnitPrice = i.engine.UnitPrice(obs, now)
			all[idx].LastCalculatedAt = now
		}
	}

	volatility := pricing.Volatility(all, history)
	existing.Components = all
	existing.UnitMaterialPrice = pricing.MaterialUnitPrice(all)
	existing.UnitManpowerPrice = pricing.ManpowerUnitPrice(all)
	existing.VolatilityIndex = volatility
	existing.IsComplexAssembly = pricing.IsComplex(volatility)
	existing.ConfidenceScore = match.Similarity
	existing.LastPricedAt = now

	if err := i.catalog.UpdateRecipe(ctx, existing, newComponents, observations); err != nil {
		return fmt.Errorf("update recipe %s: %w", existing.ID, err)
	}

	report.RecipesMerged++
	report.ComponentsWritten += len(newComponents)
	report.ObservationsAppended += len(observations)
	return nil
}

// branchConfidence scores a freshly created recipe: full confidence for a
// clean decision, reduced when the branch came from a provider-failure
// fallback.
func branchConfidence(match domain.ResolvedMatch) float64 {
	if match.Degraded {
		return 0.5
	}
	return 1
}

func (i *Ingestion) info(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Info(msg, args...)
	}
}

func (i *Ingestion) debug(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Debug(msg, args...)
	}
}

func (i *Ingestion) warn(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Warn(msg, args...)
	}
}
