package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"polyresearch/internal/models"
	"polyresearch/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- markets ----------------------------------------------------------------

func (s *Store) UpsertMarket(ctx context.Context, item *models.Market) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil
	}
	// Status is pipeline-owned; never overwrite it on re-sync.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"slug",
			"question",
			"outcomes",
			"outcome_prices",
			"volume",
			"liquidity",
			"end_date",
			"last_synced_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) UpsertMarkets(ctx context.Context, items []models.Market) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	cleaned := make([]models.Market, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			continue
		}
		cleaned = append(cleaned, item)
	}
	if len(cleaned) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"slug",
			"question",
			"outcomes",
			"outcome_prices",
			"volume",
			"liquidity",
			"end_date",
			"last_synced_at",
			"raw_json",
			"updated_at",
		}),
	}).CreateInBatches(cleaned, 200).Error
}

func (s *Store) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var item models.Market
	err := s.db.WithContext(ctx).Model(&models.Market{}).Where("id = ?", strings.TrimSpace(id)).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.marketQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Market
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.marketQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) marketQuery(ctx context.Context, params repository.ListMarketsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Market{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Question != nil && strings.TrimSpace(*params.Question) != "" {
		query = query.Where("question ILIKE ?", "%"+strings.TrimSpace(*params.Question)+"%")
	}
	return query
}

func (s *Store) UpdateMarketStatus(ctx context.Context, id string, status string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(status) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Market{}).
		Where("id = ?", strings.TrimSpace(id)).
		Updates(map[string]any{
			"status":     strings.TrimSpace(status),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Store) CountMarketsByStatus(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return map[string]int64{}, nil
	}
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Market{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

// --- research tasks ---------------------------------------------------------

func (s *Store) InsertResearchTask(ctx context.Context, item *models.ResearchTask) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetResearchTaskByID(ctx context.Context, id string) (*models.ResearchTask, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var item models.ResearchTask
	err := s.db.WithContext(ctx).Model(&models.ResearchTask{}).Where("id = ?", strings.TrimSpace(id)).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListResearchTasks(ctx context.Context, params repository.ListResearchTasksParams) ([]models.ResearchTask, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.taskQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.ResearchTask
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountResearchTasks(ctx context.Context, params repository.ListResearchTasksParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.taskQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) taskQuery(ctx context.Context, params repository.ListResearchTasksParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.ResearchTask{})
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Technique != nil && strings.TrimSpace(*params.Technique) != "" {
		query = query.Where("technique = ?", strings.TrimSpace(*params.Technique))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

func (s *Store) UpdateResearchTask(ctx context.Context, id string, updates map[string]any) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(id) == "" || len(updates) == 0 {
		return nil
	}
	next := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		next[k] = v
	}
	return s.db.WithContext(ctx).Model(&models.ResearchTask{}).Where("id = ?", strings.TrimSpace(id)).Updates(next).Error
}

func (s *Store) UpdateResearchTaskStatus(ctx context.Context, id string, status string, updates map[string]any) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(status) == "" {
		return nil
	}
	next := map[string]any{
		"status":     strings.TrimSpace(status),
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		next[k] = v
	}
	return s.db.WithContext(ctx).Model(&models.ResearchTask{}).Where("id = ?", strings.TrimSpace(id)).Updates(next).Error
}

func (s *Store) ListCompletedResearchTasksByMarket(ctx context.Context, marketID string) ([]models.ResearchTask, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if strings.TrimSpace(marketID) == "" {
		return nil, nil
	}
	var items []models.ResearchTask
	err := s.db.WithContext(ctx).Model(&models.ResearchTask{}).
		Where("market_id = ?", strings.TrimSpace(marketID)).
		Where("status = ?", models.TaskStatusCompleted).
		Order("completed_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListUnfinishedResearchTasksBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ResearchTask, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if cutoff.IsZero() {
		return nil, nil
	}
	var items []models.ResearchTask
	err := s.db.WithContext(ctx).Model(&models.ResearchTask{}).
		Where("status IN ?", []string{models.TaskStatusPending, models.TaskStatusRunning}).
		Where("created_at < ?", cutoff).
		Order("created_at asc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountResearchTasksByStatus(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return map[string]int64{}, nil
	}
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.ResearchTask{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

// --- research sources -------------------------------------------------------

func (s *Store) InsertResearchSources(ctx context.Context, items []models.ResearchSource) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return createInBatches(s.db.WithContext(ctx), items, 200)
}

func (s *Store) ListResearchSourcesByTaskIDs(ctx context.Context, taskIDs []string) ([]models.ResearchSource, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ids := cleanStrings(taskIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.ResearchSource
	err := s.db.WithContext(ctx).Model(&models.ResearchSource{}).
		Where("task_id IN ?", ids).
		Order("relevance desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountResearchSourcesByTaskID(ctx context.Context, taskID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if strings.TrimSpace(taskID) == "" {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&models.ResearchSource{}).
		Where("task_id = ?", strings.TrimSpace(taskID)).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// --- evaluations ------------------------------------------------------------

func (s *Store) InsertEvaluation(ctx context.Context, item *models.Evaluation) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetEvaluationByID(ctx context.Context, id uint64) (*models.Evaluation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Evaluation
	err := s.db.WithContext(ctx).Model(&models.Evaluation{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListEvaluations(ctx context.Context, params repository.ListEvaluationsParams) ([]models.Evaluation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.evaluationQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Evaluation
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountEvaluations(ctx context.Context, params repository.ListEvaluationsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.evaluationQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) evaluationQuery(ctx context.Context, params repository.ListEvaluationsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Evaluation{})
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Recommend != nil {
		query = query.Where("recommend_trade = ?", *params.Recommend)
	}
	return query
}

// --- task events ------------------------------------------------------------

func (s *Store) InsertTaskEvent(ctx context.Context, item *models.TaskEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTaskEventsByTaskID(ctx context.Context, taskID string) ([]models.TaskEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, nil
	}
	var items []models.TaskEvent
	err := s.db.WithContext(ctx).Model(&models.TaskEvent{}).
		Where("task_id = ?", strings.TrimSpace(taskID)).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
