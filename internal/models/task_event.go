package models

import "time"

// TaskEvent is the audit trail for research task lifecycle transitions and
// failure diagnostics. Processing errors land here, never back at dispatch.
type TaskEvent struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID     string `gorm:"type:varchar(36);not null;index" json:"task_id"`
	FromStatus string `gorm:"type:varchar(12);not null" json:"from_status"`
	ToStatus   string `gorm:"type:varchar(12);not null" json:"to_status"`
	Note       string `gorm:"type:text" json:"note"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (TaskEvent) TableName() string {
	return "task_events"
}
