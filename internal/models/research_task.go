package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Research task statuses. Transitions only advance
// pending -> running -> {completed|failed}; completed and failed are terminal.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// ResearchTask is the durable checkpoint for one externally executed research
// job. The orchestrator is the sole writer; the record is immutable once it
// reaches a terminal status.
type ResearchTask struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MarketID string `gorm:"type:text;not null;index" json:"market_id"`

	Technique string `gorm:"type:varchar(20);not null;index" json:"technique"`
	Model     string `gorm:"type:varchar(60);not null" json:"model"`
	Query     string `gorm:"type:text;not null" json:"query"`

	Status string `gorm:"type:varchar(12);not null;index;default:'pending'" json:"status"`

	// InteractionRef is the opaque provider job handle for multi-step
	// techniques. Persisted before the first poll so a crash between create
	// and poll stays resumable. Set once, never changed.
	InteractionRef *string    `gorm:"type:text" json:"interaction_ref,omitempty"`
	PollCount      int        `gorm:"not null;default:0" json:"poll_count"`
	LastPolledAt   *time.Time `gorm:"type:timestamptz" json:"last_polled_at,omitempty"`

	StartedAt   *time.Time `gorm:"type:timestamptz" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"type:timestamptz" json:"completed_at,omitempty"`

	Summary        string         `gorm:"type:text" json:"summary"`
	KeyFacts       datatypes.JSON `gorm:"type:jsonb" json:"key_facts,omitempty"`
	Contradictions datatypes.JSON `gorm:"type:jsonb" json:"contradictions,omitempty"`
	ErrorMessage   *string        `gorm:"type:text" json:"error_message,omitempty"`

	AutoEvaluate bool `gorm:"not null;default:false" json:"auto_evaluate"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (ResearchTask) TableName() string {
	return "research_tasks"
}

// Terminal reports whether the task may no longer be mutated.
func (t ResearchTask) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Duration is the true total runtime across invocations, not the wall clock
// of whichever worker observed completion.
func (t ResearchTask) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

func (t ResearchTask) KeyFactList() []string {
	return decodeStringList(t.KeyFacts)
}

func (t ResearchTask) ContradictionList() []string {
	return decodeStringList(t.Contradictions)
}

func decodeStringList(raw datatypes.JSON) []string {
	var out []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
