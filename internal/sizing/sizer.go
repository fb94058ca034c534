// Package sizing converts an evaluation verdict into a bankroll fraction
// with confidence-scaled, dampened Kelly staking. It is pure: same inputs,
// same output, no I/O.
package sizing

import (
	"github.com/shopspring/decimal"

	"polyresearch/internal/config"
	"polyresearch/internal/models"
)

// Inputs is everything the sizer looks at. Probability and MarketPrice are
// quoted for the chosen direction, so the edge below is always "our estimate
// minus what the market charges for that side".
type Inputs struct {
	RecommendTrade bool
	GuardTriggered bool
	CompositeScore int
	Probability    decimal.Decimal
	MarketPrice    decimal.Decimal
	Direction      string
}

// Constraints are the runtime sizing knobs.
type Constraints struct {
	MaxPositionPercent decimal.Decimal
	MinCompositeScore  decimal.Decimal
	MinEdge            decimal.Decimal
	KellyDampening     decimal.Decimal
}

func ConstraintsFromConfig(cfg config.SizingConfig) Constraints {
	return Constraints{
		MaxPositionPercent: decimal.NewFromFloat(cfg.MaxPositionPercent),
		MinCompositeScore:  decimal.NewFromFloat(cfg.MinCompositeScore),
		MinEdge:            decimal.NewFromFloat(cfg.MinEdge),
		KellyDampening:     decimal.NewFromFloat(cfg.KellyDampening),
	}
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Size returns the recommended stake as a percent of bankroll in
// [0, MaxPositionPercent]. Zero means do not trade. The gates are checked
// in order; any failing gate short-circuits to zero.
func Size(in Inputs, c Constraints) decimal.Decimal {
	if !in.RecommendTrade || in.GuardTriggered {
		return decimal.Zero
	}
	if decimal.NewFromInt(int64(in.CompositeScore)).LessThan(c.MinCompositeScore) {
		return decimal.Zero
	}
	if in.Direction != models.DirectionYes && in.Direction != models.DirectionNo {
		return decimal.Zero
	}

	price := in.MarketPrice
	p := in.Probability
	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThanOrEqual(one) {
		return decimal.Zero
	}
	if p.LessThan(decimal.Zero) || p.GreaterThan(one) {
		return decimal.Zero
	}

	edge := p.Sub(price)
	if edge.Abs().LessThan(c.MinEdge) || edge.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	// Binary-outcome Kelly: a share bought at price pays 1, so the net odds
	// are b = (1-price)/price and f* = (b*p - q) / b.
	b := one.Sub(price).Div(price)
	q := one.Sub(p)
	kelly := b.Mul(p).Sub(q).Div(b)
	if kelly.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	confidence := decimal.NewFromInt(int64(in.CompositeScore)).Div(hundred)
	fraction := kelly.Mul(confidence).Mul(c.KellyDampening)

	// The dampened Kelly fraction scales the position cap rather than being
	// clamped against it, so even a full-Kelly signal stays inside the cap.
	position := fraction.Mul(c.MaxPositionPercent)
	if position.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if position.GreaterThan(c.MaxPositionPercent) {
		return c.MaxPositionPercent
	}
	return position
}
