package models

import "time"

// ResearchSource is one cited source extracted from a completed research
// task. Rows are only created alongside task completion.
type ResearchSource struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID string `gorm:"type:varchar(36);not null;index" json:"task_id"`

	URL             string     `gorm:"type:text;not null" json:"url"`
	Title           string     `gorm:"type:text" json:"title"`
	DomainAuthority float64    `gorm:"not null;default:0" json:"domain_authority"`
	PublishedAt     *time.Time `gorm:"type:timestamptz" json:"published_at,omitempty"`
	Relevance       float64    `gorm:"not null;default:0" json:"relevance"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (ResearchSource) TableName() string {
	return "research_sources"
}
