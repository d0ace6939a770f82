package pricing

import (
	"fmt"
	"sort"
	"time"

	"Costbook/internal/domain"
)

// Strategy selects how a component's unit price is derived from its history.
// The strategy is explicit engine configuration; there is no global mode.
type Strategy string

const (
	// StrategyAdaptive blends the latest observation with the weighted
	// reference average on price shocks or stale gaps, and falls back to a
	// plain recency-weighted average otherwise.
	StrategyAdaptive Strategy = "adaptive"
	// StrategyMax takes the maximum price ever observed.
	StrategyMax Strategy = "max"
	// StrategyLatest takes only the most recent observation.
	StrategyLatest Strategy = "latest"
	// StrategyRecent averages observations from the last 365 days, falling
	// back to the most recent observation when the window is empty.
	StrategyRecent Strategy = "recent"
)

const (
	shockDeviation = 0.20
	staleGapDays   = 180
	recentWindow   = 365 * 24 * time.Hour
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyAdaptive, StrategyMax, StrategyLatest, StrategyRecent:
		return Strategy(name), nil
	case "":
		return StrategyAdaptive, nil
	}
	return "", fmt.Errorf("unknown pricing strategy %q", name)
}

// Engine recomputes component unit prices from raw price history. The result
// is a pure function of (history, now); repeated runs over the same history
// produce the same price.
type Engine struct {
	strategy Strategy
}

// NewEngine builds an engine for the given strategy.
func NewEngine(strategy Strategy) Engine {
	return Engine{strategy: strategy}
}

// UnitPrice derives a single unit price from the component's observations.
// An empty history yields 0.
func (e Engine) UnitPrice(history []domain.PriceObservation, now time.Time) float64 {
	if len(history) == 0 {
		return 0
	}

	obs := sortedByTime(history)

	switch e.strategy {
	case StrategyMax:
		max := obs[0].RawPrice
		for _, o := range obs[1:] {
			if o.RawPrice > max {
				max = o.RawPrice
			}
		}
		return max

	case StrategyLatest:
		return obs[len(obs)-1].RawPrice

	case StrategyRecent:
		var sum float64
		var n int
		for _, o := range obs {
			if now.Sub(o.ObservedAt) <= recentWindow {
				sum += o.RawPrice
				n++
			}
		}
		if n == 0 {
			return obs[len(obs)-1].RawPrice
		}
		return sum / float64(n)

	default:
		return adaptivePrice(obs, now)
	}
}

// adaptivePrice implements the default time-aware strategy. With a shocked or
// stale latest observation the reference average is no longer trustworthy,
// so the latest price dominates the blend.
func adaptivePrice(obs []domain.PriceObservation, now time.Time) float64 {
	if len(obs) == 1 {
		return obs[0].RawPrice
	}

	latest := obs[len(obs)-1]
	reference := obs[:len(obs)-1]

	refAvg := weightedAverage(reference, now)

	deviation := 0.0
	if refAvg != 0 {
		deviation = abs(latest.RawPrice-refAvg) / refAvg
	}

	previous := reference[len(reference)-1]
	gapDays := latest.ObservedAt.Sub(previous.ObservedAt).Hours() / 24

	if deviation > shockDeviation || gapDays > staleGapDays {
		return 0.9*latest.RawPrice + 0.1*refAvg
	}
	return weightedAverage(obs, now)
}

// weightedAverage applies the recency weighting to a set of observations:
// full weight inside a year, half up to two years, a tenth beyond.
func weightedAverage(obs []domain.PriceObservation, now time.Time) float64 {
	var sum, weights float64
	for _, o := range obs {
		w := recencyWeight(now.Sub(o.ObservedAt).Hours() / 24)
		sum += w * o.RawPrice
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

func recencyWeight(ageDays float64) float64 {
	switch {
	case ageDays <= 365:
		return 1.0
	case ageDays <= 730:
		return 0.5
	default:
		return 0.1
	}
}

func sortedByTime(history []domain.PriceObservation) []domain.PriceObservation {
	obs := make([]domain.PriceObservation, len(history))
	copy(obs, history)
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].ObservedAt.Before(obs[j].ObservedAt)
	})
	return obs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
