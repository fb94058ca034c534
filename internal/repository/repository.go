package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"polyresearch/internal/models"
)

// Repository is the unified store consumed by the orchestrator, the
// evaluation engine, and the HTTP handlers. The persisted records are the
// single source of truth; no component holds pipeline state in memory.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Market snapshots (ingestion-owned except for workflow status).
	UpsertMarket(ctx context.Context, item *models.Market) error
	UpsertMarkets(ctx context.Context, items []models.Market) error
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)
	ListMarkets(ctx context.Context, params ListMarketsParams) ([]models.Market, error)
	CountMarkets(ctx context.Context, params ListMarketsParams) (int64, error)
	UpdateMarketStatus(ctx context.Context, id string, status string) error
	CountMarketsByStatus(ctx context.Context) (map[string]int64, error)

	// Research tasks (orchestrator-owned).
	InsertResearchTask(ctx context.Context, item *models.ResearchTask) error
	GetResearchTaskByID(ctx context.Context, id string) (*models.ResearchTask, error)
	ListResearchTasks(ctx context.Context, params ListResearchTasksParams) ([]models.ResearchTask, error)
	CountResearchTasks(ctx context.Context, params ListResearchTasksParams) (int64, error)
	UpdateResearchTask(ctx context.Context, id string, updates map[string]any) error
	UpdateResearchTaskStatus(ctx context.Context, id string, status string, updates map[string]any) error
	ListCompletedResearchTasksByMarket(ctx context.Context, marketID string) ([]models.ResearchTask, error)
	ListUnfinishedResearchTasksBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ResearchTask, error)
	CountResearchTasksByStatus(ctx context.Context) (map[string]int64, error)

	// Research sources (created alongside completion only).
	InsertResearchSources(ctx context.Context, items []models.ResearchSource) error
	ListResearchSourcesByTaskIDs(ctx context.Context, taskIDs []string) ([]models.ResearchSource, error)
	CountResearchSourcesByTaskID(ctx context.Context, taskID string) (int64, error)

	// Evaluations (append-only).
	InsertEvaluation(ctx context.Context, item *models.Evaluation) error
	GetEvaluationByID(ctx context.Context, id uint64) (*models.Evaluation, error)
	ListEvaluations(ctx context.Context, params ListEvaluationsParams) ([]models.Evaluation, error)
	CountEvaluations(ctx context.Context, params ListEvaluationsParams) (int64, error)

	// Task audit trail.
	InsertTaskEvent(ctx context.Context, item *models.TaskEvent) error
	ListTaskEventsByTaskID(ctx context.Context, taskID string) ([]models.TaskEvent, error)
}

type ListMarketsParams struct {
	Limit    int
	Offset   int
	Status   *string
	Question *string
	OrderBy  string
	Asc      *bool
}

type ListResearchTasksParams struct {
	Limit     int
	Offset    int
	MarketID  *string
	Status    *string
	Technique *string
	Since     *time.Time
	OrderBy   string
	Asc       *bool
}

type ListEvaluationsParams struct {
	Limit     int
	Offset    int
	MarketID  *string
	Recommend *bool
	OrderBy   string
	Asc       *bool
}
