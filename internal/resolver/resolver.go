// Package resolver decides whether an incoming recipe is the same priceable
// item as one already in the catalog (MERGE) or a new one (BRANCH).
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"Costbook/internal/domain"
	"Costbook/internal/ports"
)

// Default decision thresholds over the 1/(1+distance) similarity.
const (
	DefaultMergeThreshold = 0.98
	DefaultJudgeThreshold = 0.92
)

// Resolver runs the merge/branch decision procedure: vector similarity with
// the equivalence judge as tie-breaker in the ambiguous band. Every provider
// failure degrades to the safest action (BRANCH) instead of failing the run.
type Resolver struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	catalog  ports.Catalog
	judge    ports.EquivalenceJudge

	mergeThreshold float64
	judgeThreshold float64
	logger         *slog.Logger
}

var _ ports.Matcher = (*Resolver)(nil)

// New wires the resolver. Thresholds at or below zero fall back to defaults.
func New(embedder ports.Embedder, index ports.VectorIndex, catalog ports.Catalog, judge ports.EquivalenceJudge, mergeThreshold, judgeThreshold float64, logger *slog.Logger) *Resolver {
	if mergeThreshold <= 0 {
		mergeThreshold = DefaultMergeThreshold
	}
	if judgeThreshold <= 0 {
		judgeThreshold = DefaultJudgeThreshold
	}
	return &Resolver{
		embedder:       embedder,
		index:          index,
		catalog:        catalog,
		judge:          judge,
		mergeThreshold: mergeThreshold,
		judgeThreshold: judgeThreshold,
		logger:         logger,
	}
}

// Resolve classifies a candidate description. The returned vector is the
// candidate's embedding when one was computed, so the caller can register it
// with the index after a BRANCH. Only storage errors are returned as errors;
// provider failures produce a degraded BRANCH.
func (r *Resolver) Resolve(ctx context.Context, description string) (domain.ResolvedMatch, []float32, error) {
	vec, err := r.embedder.Embed(ctx, flatten(description))
	if err != nil {
		r.warn("embedding provider failure", "error", err)
		return degradedBranch(fmt.Sprintf("embedding unavailable: %v", err)), nil, nil
	}

	neighbors, err := r.index.Nearest(ctx, vec, 1)
	if err != nil {
		r.warn("vector index failure", "error", err)
		return degradedBranch(fmt.Sprintf("vector index unavailable: %v", err)), vec, nil
	}
	if len(neighbors) == 0 {
		return domain.ResolvedMatch{Action: domain.ActionBranch, Rationale: "no existing items"}, vec, nil
	}

	nearest := neighbors[0]
	similarity := 1 / (1 + nearest.Distance)

	existing, err := r.catalog.RecipeByID(ctx, nearest.RecipeID)
	if err != nil {
		return domain.ResolvedMatch{}, nil, fmt.Errorf("load matched recipe %s: %w", nearest.RecipeID, err)
	}

	match := domain.ResolvedMatch{
		RecipeID:           existing.ID,
		MatchedDescription: existing.Description,
		Similarity:         similarity,
	}

	switch {
	case similarity >= r.mergeThreshold:
		match.Action = domain.ActionMerge
		match.Rationale = "high-confidence vector match"

	case similarity >= r.judgeThreshold:
		match = r.arbitrate(ctx, description, existing.Description, match)

	default:
		match.Action = domain.ActionBranch
		match.Rationale = "below similarity threshold"
	}

	return match, vec, nil
}

// arbitrate invokes the judge for the ambiguous similarity band. Identical
// descriptions are trivially equivalent and skip the external call; a judge
// failure is treated as non-equivalence.
func (r *Resolver) arbitrate(ctx context.Context, candidate, existing string, match domain.ResolvedMatch) domain.ResolvedMatch {
	if strings.TrimSpace(candidate) == strings.TrimSpace(existing) {
		match.Action = domain.ActionMerge
		match.Rationale = "identical description"
		return match
	}

	equivalent, rationale, err := r.judge.Judge(ctx, candidate, existing)
	if err != nil {
		r.warn("judge failure, treating as non-equivalent", "error", err)
		match.Action = domain.ActionBranch
		match.Rationale = fmt.Sprintf("judge unavailable: %v", err)
		match.Degraded = true
		return match
	}

	if equivalent {
		match.Action = domain.ActionMerge
	} else {
		match.Action = domain.ActionBranch
	}
	match.Rationale = rationale
	return match
}

// MatchedPair binds a candidate component to the existing component that
// absorbs its price observation on MERGE.
type MatchedPair struct {
	Existing domain.Component
	Draft    domain.DraftComponent
}

// Reconcile maps candidate components onto a matched recipe's existing
// components by substring containment of descriptions (either side may
// contain the other), case-insensitively. The first matching existing
// component wins and is consumed, so two candidate lines never collapse onto
// one history stream. Unmatched candidates are returned for appending as new
// components.
func Reconcile(existing []domain.Component, candidates []domain.DraftComponent) ([]MatchedPair, []domain.DraftComponent) {
	var pairs []MatchedPair
	var unmatched []domain.DraftComponent

	consumed := make(map[uuid.UUID]bool, len(existing))

	for _, cand := range candidates {
		candDesc := strings.ToLower(strings.TrimSpace(cand.Description))
		found := false
		for _, ex := range existing {
			if consumed[ex.ID] {
				continue
			}
			exDesc := strings.ToLower(strings.TrimSpace(ex.Description))
			if candDesc == "" || exDesc == "" {
				continue
			}
			if strings.Contains(exDesc, candDesc) || strings.Contains(candDesc, exDesc) {
				consumed[ex.ID] = true
				pairs = append(pairs, MatchedPair{Existing: ex, Draft: cand})
				found = true
				break
			}
		}
		if !found {
			unmatched = append(unmatched, cand)
		}
	}

	return pairs, unmatched
}

func degradedBranch(rationale string) domain.ResolvedMatch {
	return domain.ResolvedMatch{
		Action:    domain.ActionBranch,
		Rationale: rationale,
		Degraded:  true,
	}
}

func flatten(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}

func (r *Resolver) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
