package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Information advantage levels for the alpha-seeking gate.
const (
	AdvantageNone     = "none"
	AdvantageWeak     = "weak"
	AdvantageModerate = "moderate"
	AdvantageStrong   = "strong"
)

// Trade directions.
const (
	DirectionYes = "yes"
	DirectionNo  = "no"
)

// Evaluation is an immutable scoring record produced by one engine
// invocation. Re-evaluating a market creates a new row, never an update.
type Evaluation struct {
	ID       uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	MarketID string         `gorm:"type:text;not null;index" json:"market_id"`
	TaskIDs  datatypes.JSON `gorm:"type:jsonb;not null" json:"task_ids"`

	AuthenticityScore int `gorm:"not null" json:"authenticity_score"`
	ConfidenceScore   int `gorm:"not null" json:"confidence_score"`
	SizingScore       int `gorm:"not null" json:"sizing_score"`
	CompositeScore    int `gorm:"not null;index" json:"composite_score"`

	Probability decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"probability"`
	MarketPrice decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"market_price"`
	Edge        decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"edge"`

	RecommendTrade bool    `gorm:"not null;default:false" json:"recommend_trade"`
	Direction      *string `gorm:"type:varchar(5)" json:"direction,omitempty"`
	Advantage      string  `gorm:"type:varchar(10);not null;default:'none'" json:"advantage"`
	Thesis         *string `gorm:"type:text" json:"thesis,omitempty"`
	Reasoning      string  `gorm:"type:text" json:"reasoning"`
	GuardTriggered bool    `gorm:"not null;default:false" json:"guard_triggered"`

	// PositionPercent is the recommended stake as a percent of bankroll,
	// in [0, sizing.max_position_percent]. Zero whenever RecommendTrade is
	// false or any sizing gate fires.
	PositionPercent decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"position_percent"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}
