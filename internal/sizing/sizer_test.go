package sizing

import (
	"testing"

	"github.com/shopspring/decimal"

	"polyresearch/internal/models"
)

func constraints() Constraints {
	return Constraints{
		MaxPositionPercent: decimal.NewFromInt(5),
		MinCompositeScore:  decimal.NewFromInt(60),
		MinEdge:            decimal.NewFromFloat(0.02),
		KellyDampening:     decimal.NewFromFloat(0.5),
	}
}

func TestSize_ConfidentEdgeStaysUnderCap(t *testing.T) {
	// Price 45c, estimate 72%, composite 82.
	got := Size(Inputs{
		RecommendTrade: true,
		CompositeScore: 82,
		Probability:    decimal.NewFromFloat(0.72),
		MarketPrice:    decimal.NewFromFloat(0.45),
		Direction:      models.DirectionYes,
	}, constraints())
	if !got.GreaterThan(decimal.Zero) {
		t.Fatalf("position=%s want > 0", got.String())
	}
	if !got.LessThan(decimal.NewFromInt(5)) {
		t.Fatalf("position=%s want strictly below 5", got.String())
	}
}

func TestSize_ZeroGates(t *testing.T) {
	base := Inputs{
		RecommendTrade: true,
		CompositeScore: 82,
		Probability:    decimal.NewFromFloat(0.72),
		MarketPrice:    decimal.NewFromFloat(0.45),
		Direction:      models.DirectionYes,
	}

	cases := []struct {
		name   string
		mutate func(in Inputs) Inputs
	}{
		{"no recommendation", func(in Inputs) Inputs {
			in.RecommendTrade = false
			return in
		}},
		{"guard triggered", func(in Inputs) Inputs {
			in.GuardTriggered = true
			return in
		}},
		{"composite below threshold", func(in Inputs) Inputs {
			in.CompositeScore = 59
			return in
		}},
		{"edge below materiality", func(in Inputs) Inputs {
			in.Probability = decimal.NewFromFloat(0.46)
			return in
		}},
		{"negative edge", func(in Inputs) Inputs {
			in.Probability = decimal.NewFromFloat(0.30)
			return in
		}},
		{"missing direction", func(in Inputs) Inputs {
			in.Direction = ""
			return in
		}},
		{"degenerate price", func(in Inputs) Inputs {
			in.MarketPrice = decimal.Zero
			return in
		}},
	}
	for _, tc := range cases {
		got := Size(tc.mutate(base), constraints())
		if !got.IsZero() {
			t.Fatalf("%s: position=%s want 0", tc.name, got.String())
		}
	}
}

func TestSize_ScalesWithComposite(t *testing.T) {
	in := Inputs{
		RecommendTrade: true,
		CompositeScore: 95,
		Probability:    decimal.NewFromFloat(0.72),
		MarketPrice:    decimal.NewFromFloat(0.45),
		Direction:      models.DirectionYes,
	}
	high := Size(in, constraints())
	in.CompositeScore = 65
	low := Size(in, constraints())
	if !high.GreaterThan(low) {
		t.Fatalf("high=%s low=%s want high > low", high.String(), low.String())
	}
}

func TestSize_Deterministic(t *testing.T) {
	in := Inputs{
		RecommendTrade: true,
		CompositeScore: 82,
		Probability:    decimal.NewFromFloat(0.72),
		MarketPrice:    decimal.NewFromFloat(0.45),
		Direction:      models.DirectionNo,
	}
	first := Size(in, constraints())
	second := Size(in, constraints())
	if first.Cmp(second) != 0 {
		t.Fatalf("first=%s second=%s want identical", first.String(), second.String())
	}
}

func TestSize_NeverExceedsCap(t *testing.T) {
	// Extreme but in-range inputs: the scaled fraction must stay clamped.
	c := constraints()
	c.KellyDampening = decimal.NewFromInt(10)
	got := Size(Inputs{
		RecommendTrade: true,
		CompositeScore: 100,
		Probability:    decimal.NewFromFloat(0.99),
		MarketPrice:    decimal.NewFromFloat(0.10),
		Direction:      models.DirectionYes,
	}, c)
	if got.GreaterThan(decimal.NewFromInt(5)) {
		t.Fatalf("position=%s want <= 5", got.String())
	}
}
