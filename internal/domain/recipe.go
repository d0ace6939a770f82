package domain

import (
	"time"

	"github.com/google/uuid"
)

// ComponentKind classifies a recipe sub-line as material or labor cost.
type ComponentKind string

const (
	KindMaterial ComponentKind = "MAT"
	KindLabor    ComponentKind = "MAN"
)

// Recipe is a priceable unit of work reconstructed from source documents.
// Its price and volatility fields are caches derived from price history;
// the observations remain the source of truth.
type Recipe struct {
	ID                uuid.UUID
	Code              string
	Description       string
	UnitMaterialPrice float64
	UnitManpowerPrice float64
	SourceFile        string
	VolatilityIndex   float64
	IsComplexAssembly bool
	ConfidenceScore   float64
	LastPricedAt      time.Time
	Components        []Component
}

// Component is one sub-line of a recipe's composition.
type Component struct {
	ID               uuid.UUID
	RecipeID         uuid.UUID
	Code             string
	Description      string
	Kind             ComponentKind
	QtyCoefficient   float64
	UnitPrice        float64
	LastCalculatedAt time.Time
}

// PriceObservation is one raw price reported for a component at a point in
// time. Observations are append-only; corrections arrive as new observations.
type PriceObservation struct {
	ComponentID uuid.UUID
	RawPrice    float64
	ObservedAt  time.Time
	SourceFile  string
	Reliability float64
}

// MatchAction is the resolver's verdict for an incoming recipe.
type MatchAction string

const (
	ActionMerge  MatchAction = "MERGE"
	ActionBranch MatchAction = "BRANCH"
)

// ResolvedMatch is the ephemeral result of semantic resolution. RecipeID is
// uuid.Nil when no existing recipe matched. Degraded marks decisions taken on
// a provider-failure fallback path.
type ResolvedMatch struct {
	RecipeID           uuid.UUID
	MatchedDescription string
	Similarity         float64
	Action             MatchAction
	Rationale          string
	Degraded           bool
}

// RecipeRef is a lightweight (id, description) pair used by the incremental
// vector backfill.
type RecipeRef struct {
	ID          uuid.UUID
	Description string
}
