package catalog

import (
	"testing"
	"time"

	"polyresearch/internal/models"
)

func TestDecodeStringArray(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{`["Yes","No"]`, []string{"Yes", "No"}},
		{`"Yes", "No"`, []string{"Yes", "No"}},
		{"", nil},
	}
	for _, tc := range cases {
		got := DecodeStringArray(tc.raw)
		if len(got) != len(tc.want) {
			t.Fatalf("raw=%q got=%v want=%v", tc.raw, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("raw=%q got=%v want=%v", tc.raw, got, tc.want)
			}
		}
	}
}

func TestMapMarket(t *testing.T) {
	now := time.Now().UTC()
	item := GammaMarket{
		ID:            "mkt-1",
		Slug:          "incumbent-wins",
		Question:      "Will the incumbent win?",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.62","0.38"]`,
		VolumeNum:     120000,
		LiquidityNum:  45000,
		EndDate:       "2026-11-03T00:00:00Z",
		Active:        true,
	}
	market, ok := mapMarket(item, now)
	if !ok {
		t.Fatalf("expected mappable market")
	}
	if market.Status != models.MarketStatusWatching {
		t.Fatalf("status=%s want watching", market.Status)
	}
	price, hasPrice := market.YesPrice()
	if !hasPrice || price.StringFixed(2) != "0.62" {
		t.Fatalf("yes price=%s hasPrice=%v", price.String(), hasPrice)
	}
	if market.EndDate == nil || market.EndDate.Year() != 2026 {
		t.Fatalf("end date=%v", market.EndDate)
	}
	if market.Liquidity == nil {
		t.Fatalf("liquidity not mapped")
	}
}

func TestMapMarket_RejectsIncomplete(t *testing.T) {
	now := time.Now().UTC()
	if _, ok := mapMarket(GammaMarket{ID: "x", Question: "q"}, now); ok {
		t.Fatalf("market without outcomes must be skipped")
	}
	if _, ok := mapMarket(GammaMarket{Question: "q", Outcomes: `["Yes"]`, OutcomePrices: `["1"]`}, now); ok {
		t.Fatalf("market without id must be skipped")
	}
}
