package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Market workflow statuses owned by the pipeline.
const (
	MarketStatusWatching    = "watching"
	MarketStatusResearching = "researching"
	MarketStatusEvaluated   = "evaluated"
	MarketStatusTraded      = "traded"
	MarketStatusClosed      = "closed"
)

// Market is a read-mostly snapshot synced from the upstream catalog. The
// pipeline only mutates Status; everything else is owned by ingestion.
type Market struct {
	ID            string           `gorm:"primaryKey;type:text" json:"id"`
	Slug          *string          `gorm:"type:text;uniqueIndex" json:"slug,omitempty"`
	Question      string           `gorm:"type:text;not null" json:"question"`
	Outcomes      datatypes.JSON   `gorm:"type:jsonb;not null" json:"outcomes"`
	OutcomePrices datatypes.JSON   `gorm:"type:jsonb;not null" json:"outcome_prices"`
	Volume        *decimal.Decimal `gorm:"type:numeric(30,10)" json:"volume,omitempty"`
	Liquidity     *decimal.Decimal `gorm:"type:numeric(30,10)" json:"liquidity,omitempty"`
	EndDate       *time.Time       `gorm:"type:timestamptz;index" json:"end_date,omitempty"`
	Status        string           `gorm:"type:varchar(20);not null;index;default:'watching'" json:"status"`
	LastSyncedAt  time.Time        `gorm:"type:timestamptz;not null" json:"last_synced_at"`
	RawJSON       datatypes.JSON   `gorm:"type:jsonb" json:"-"`
	CreatedAt     time.Time        `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Market) TableName() string {
	return "markets"
}

// OutcomeList decodes the ordered outcome names.
func (m Market) OutcomeList() []string {
	var out []string
	if len(m.Outcomes) > 0 {
		_ = json.Unmarshal(m.Outcomes, &out)
	}
	return out
}

// PriceList decodes the ordered outcome prices, parallel to OutcomeList.
func (m Market) PriceList() []decimal.Decimal {
	var raw []string
	if len(m.OutcomePrices) > 0 {
		if err := json.Unmarshal(m.OutcomePrices, &raw); err == nil {
			out := make([]decimal.Decimal, 0, len(raw))
			for _, s := range raw {
				d, err := decimal.NewFromString(s)
				if err != nil {
					return nil
				}
				out = append(out, d)
			}
			return out
		}
	}
	var nums []float64
	if len(m.OutcomePrices) > 0 {
		if err := json.Unmarshal(m.OutcomePrices, &nums); err == nil {
			out := make([]decimal.Decimal, 0, len(nums))
			for _, f := range nums {
				out = append(out, decimal.NewFromFloat(f))
			}
			return out
		}
	}
	return nil
}

// YesPrice returns the market-implied probability of the first outcome.
func (m Market) YesPrice() (decimal.Decimal, bool) {
	prices := m.PriceList()
	if len(prices) == 0 {
		return decimal.Zero, false
	}
	return prices[0], true
}
