package pricing

import (
	"math"

	"github.com/google/uuid"

	"Costbook/internal/domain"
)

// complexThreshold is the coefficient-of-variation level above which a
// recipe's cached price is considered unreliable for automatic quoting.
const complexThreshold = 0.5

// Volatility pools the raw price observations of a recipe's MATERIAL
// components, each scaled by its quantity coefficient, and returns the
// population coefficient of variation of the pooled samples.
func Volatility(components []domain.Component, history map[uuid.UUID][]domain.PriceObservation) float64 {
	var samples []float64
	for _, c := range components {
		if c.Kind != domain.KindMaterial {
			continue
		}
		for _, o := range history[c.ID] {
			samples = append(samples, o.RawPrice*c.QtyCoefficient)
		}
	}
	return CoefficientOfVariation(samples)
}

// CoefficientOfVariation returns population std / mean, or 0 with fewer than
// two samples or a non-positive mean.
func CoefficientOfVariation(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	if mean <= 0 {
		return 0
	}

	var sq float64
	for _, s := range samples {
		d := s - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(samples)))

	return std / mean
}

// IsComplex reports whether a volatility index marks the recipe for manual
// estimation instead of automatic quoting.
func IsComplex(cv float64) bool {
	return cv > complexThreshold
}

// MaterialUnitPrice sums cached component prices scaled by their quantity
// coefficients over MATERIAL components.
func MaterialUnitPrice(components []domain.Component) float64 {
	return unitPriceSum(components, domain.KindMaterial)
}

// ManpowerUnitPrice is the labor-side counterpart of MaterialUnitPrice.
func ManpowerUnitPrice(components []domain.Component) float64 {
	return unitPriceSum(components, domain.KindLabor)
}

func unitPriceSum(components []domain.Component, kind domain.ComponentKind) float64 {
	var total float64
	for _, c := range components {
		if c.Kind == kind {
			total += c.UnitPrice * c.QtyCoefficient
		}
	}
	return total
}
