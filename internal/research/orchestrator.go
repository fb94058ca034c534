package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"polyresearch/internal/config"
	"polyresearch/internal/models"
)

// Store is the durable checkpoint surface the orchestrator needs. Satisfied
// by repository.Repository.
type Store interface {
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)
	UpdateMarketStatus(ctx context.Context, id string, status string) error
	InsertResearchTask(ctx context.Context, item *models.ResearchTask) error
	GetResearchTaskByID(ctx context.Context, id string) (*models.ResearchTask, error)
	UpdateResearchTask(ctx context.Context, id string, updates map[string]any) error
	UpdateResearchTaskStatus(ctx context.Context, id string, status string, updates map[string]any) error
	ListUnfinishedResearchTasksBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ResearchTask, error)
	InsertResearchSources(ctx context.Context, items []models.ResearchSource) error
	InsertTaskEvent(ctx context.Context, item *models.TaskEvent) error
}

// Enqueuer hands a dispatched task id to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskID string) error
}

// Evaluator chains an evaluation after auto-evaluate completions.
type Evaluator interface {
	EvaluateMarket(ctx context.Context, marketID string) (*models.Evaluation, error)
}

// ProviderLookup resolves a technique name to a configured provider.
type ProviderLookup interface {
	Provider(technique string) (Provider, error)
}

// Orchestrator owns the research task lifecycle: dispatch, crash-safe
// processing, and the staleness sweep. The persisted task record is the
// single source of truth; the worker holding a message is its sole writer.
type Orchestrator struct {
	Repo      Store
	Providers ProviderLookup
	Queue     Enqueuer
	Evaluator Evaluator
	Logger    *zap.Logger
	Config    config.ResearchConfig

	// Factored for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DispatchRequest is validated before any task record is created.
type DispatchRequest struct {
	MarketID     string
	Technique    string
	Query        string
	Model        string
	AutoEvaluate bool
}

// Dispatch validates the request, creates a pending task, and enqueues it.
// Processing failures never propagate back here; only input validation does.
func (o *Orchestrator) Dispatch(ctx context.Context, req DispatchRequest) (*models.ResearchTask, error) {
	if !ValidTechnique(req.Technique) {
		return nil, &DataError{Msg: "unknown research technique: " + req.Technique}
	}
	// Fail fast on missing credentials, before a task record exists.
	if _, err := o.Providers.Provider(req.Technique); err != nil {
		return nil, err
	}
	market, err := o.Repo.GetMarketByID(ctx, req.MarketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, &DataError{Msg: "market not found: " + req.MarketID}
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query, err = DefaultQuery(*market)
		if err != nil {
			return nil, err
		}
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = o.defaultModel(req.Technique)
	}

	task := &models.ResearchTask{
		ID:           uuid.NewString(),
		MarketID:     market.ID,
		Technique:    req.Technique,
		Model:        model,
		Query:        query,
		Status:       models.TaskStatusPending,
		AutoEvaluate: req.AutoEvaluate,
	}
	if err := o.Repo.InsertResearchTask(ctx, task); err != nil {
		return nil, err
	}
	o.audit(ctx, task.ID, "", models.TaskStatusPending, "dispatched technique="+req.Technique)
	if err := o.Queue.Enqueue(ctx, task.ID); err != nil {
		return nil, err
	}
	if market.Status == models.MarketStatusWatching {
		if err := o.Repo.UpdateMarketStatus(ctx, market.ID, models.MarketStatusResearching); err != nil && o.Logger != nil {
			o.Logger.Warn("mark market researching failed", zap.String("market_id", market.ID), zap.Error(err))
		}
	}
	return task, nil
}

// Process is the crash-recoverable worker body. It is idempotent under
// duplicate delivery: a terminal task is acknowledged without mutation.
// A non-nil return means the message should be redelivered; task-level
// failures are recorded on the task and return nil.
func (o *Orchestrator) Process(ctx context.Context, taskID string) error {
	task, err := o.Repo.GetResearchTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		if o.Logger != nil {
			o.Logger.Warn("task message references unknown task", zap.String("task_id", taskID))
		}
		return nil
	}
	if task.Terminal() {
		if o.Logger != nil {
			o.Logger.Debug("duplicate delivery for terminal task",
				zap.String("task_id", task.ID),
				zap.String("status", task.Status),
			)
		}
		return nil
	}

	prov, err := o.Providers.Provider(task.Technique)
	if err != nil {
		o.fail(ctx, task, err.Error())
		return nil
	}

	// Transition to running. A resumed task keeps its original start time so
	// the completion duration reflects the true total runtime.
	updates := map[string]any{}
	if task.StartedAt == nil {
		started := o.nowUTC()
		task.StartedAt = &started
		updates["started_at"] = started
	}
	if task.Status != models.TaskStatusRunning {
		o.transition(ctx, task, models.TaskStatusRunning, "worker picked up task", updates)
	} else if len(updates) > 0 {
		if err := o.Repo.UpdateResearchTask(ctx, task.ID, updates); err != nil {
			return err
		}
	}

	var result *Result
	if ms, ok := prov.(MultiStepProvider); ok {
		result, err = o.runMultiStep(ctx, task, ms)
	} else {
		result, err = prov.Execute(ctx, task.Query)
	}
	if err != nil {
		// A cancelled context means shutdown, not a provider verdict. Leave
		// the task running and let queue redelivery resume it.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.fail(ctx, task, err.Error())
		return nil
	}

	o.complete(ctx, task, result)

	if task.AutoEvaluate && o.Evaluator != nil {
		if _, err := o.Evaluator.EvaluateMarket(ctx, task.MarketID); err != nil {
			// Chained evaluation failure never reverts completion.
			o.audit(ctx, task.ID, models.TaskStatusCompleted, models.TaskStatusCompleted, "auto-evaluation failed: "+err.Error())
			if o.Logger != nil {
				o.Logger.Warn("auto-evaluation failed",
					zap.String("task_id", task.ID),
					zap.String("market_id", task.MarketID),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

func (o *Orchestrator) runMultiStep(ctx context.Context, task *models.ResearchTask, prov MultiStepProvider) (*Result, error) {
	ref := ""
	if task.InteractionRef != nil {
		ref = strings.TrimSpace(*task.InteractionRef)
	}
	if ref == "" {
		created, err := prov.CreateInteraction(ctx, task.Query)
		if err != nil {
			return nil, err
		}
		// Persist the reference before the first poll. A crash from here on
		// resumes this interaction instead of creating a duplicate job.
		if err := o.Repo.UpdateResearchTask(ctx, task.ID, map[string]any{"interaction_ref": created}); err != nil {
			return nil, err
		}
		ref = created
		task.InteractionRef = &created
	}

	maxPolls := o.Config.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 80
	}
	for task.PollCount < maxPolls {
		status, pollErr := prov.PollInteraction(ctx, ref)
		task.PollCount++
		polledAt := o.nowUTC()
		task.LastPolledAt = &polledAt
		if err := o.Repo.UpdateResearchTask(ctx, task.ID, map[string]any{
			"poll_count":     task.PollCount,
			"last_polled_at": polledAt,
		}); err != nil {
			return nil, err
		}
		if pollErr != nil {
			return nil, pollErr
		}
		if status.Done {
			if status.Err != "" {
				return nil, &ExternalServiceError{Provider: prov.Name(), Msg: "interaction failed: " + status.Err}
			}
			if status.Result == nil {
				return nil, &ExternalServiceError{Provider: prov.Name(), Msg: "interaction completed without result"}
			}
			return status.Result, nil
		}
		if err := o.sleepFor(ctx, o.Config.PollInterval); err != nil {
			return nil, err
		}
	}
	return nil, &ExternalServiceError{
		Provider: prov.Name(),
		Msg:      fmt.Sprintf("poll budget exhausted after %d polls", task.PollCount),
	}
}

func (o *Orchestrator) complete(ctx context.Context, task *models.ResearchTask, result *Result) {
	completedAt := o.nowUTC()
	task.CompletedAt = &completedAt

	keyFacts, _ := json.Marshal(cleanList(result.KeyFacts))
	contradictions, _ := json.Marshal(cleanList(result.Contradictions))
	o.transition(ctx, task, models.TaskStatusCompleted, "research completed", map[string]any{
		"summary":        strings.TrimSpace(result.Summary),
		"key_facts":      datatypes.JSON(keyFacts),
		"contradictions": datatypes.JSON(contradictions),
		"completed_at":   completedAt,
	})

	sources := normalizeSources(task.ID, result.Sources)
	if len(sources) > 0 {
		if err := o.Repo.InsertResearchSources(ctx, sources); err != nil && o.Logger != nil {
			o.Logger.Warn("persist research sources failed", zap.String("task_id", task.ID), zap.Error(err))
		}
	}

	if o.Logger != nil {
		o.Logger.Info("research task completed",
			zap.String("task_id", task.ID),
			zap.String("market_id", task.MarketID),
			zap.String("technique", task.Technique),
			zap.Int("poll_count", task.PollCount),
			zap.Int("sources", len(sources)),
			zap.Duration("duration", task.Duration()),
		)
	}
}

func (o *Orchestrator) fail(ctx context.Context, task *models.ResearchTask, msg string) {
	msg = strings.TrimSpace(msg)
	o.transition(ctx, task, models.TaskStatusFailed, msg, map[string]any{
		"error_message": msg,
	})
	if o.Logger != nil {
		o.Logger.Warn("research task failed",
			zap.String("task_id", task.ID),
			zap.String("market_id", task.MarketID),
			zap.String("error", msg),
		)
	}
}

// Cleanup force-fails pending/running tasks older than threshold so markets
// stay evaluable on partial evidence. In-flight provider work is not
// cancelled; that leak is an accepted cost.
func (o *Orchestrator) Cleanup(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = o.Config.StalenessThreshold
	}
	if threshold <= 0 {
		threshold = 45 * time.Minute
	}
	now := o.nowUTC()
	cutoff := now.Add(-threshold)
	stale, err := o.Repo.ListUnfinishedResearchTasksBefore(ctx, cutoff, 200)
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range stale {
		task := stale[i]
		serr := &StalenessError{Age: now.Sub(task.CreatedAt), Threshold: threshold}
		o.fail(ctx, &task, serr.Error())
		swept++
	}
	if swept > 0 && o.Logger != nil {
		o.Logger.Info("staleness sweep force-failed tasks", zap.Int("count", swept))
	}
	return swept, nil
}

var allowedTransitions = map[string][]string{
	models.TaskStatusPending: {models.TaskStatusRunning, models.TaskStatusFailed},
	models.TaskStatusRunning: {models.TaskStatusCompleted, models.TaskStatusFailed},
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (o *Orchestrator) transition(ctx context.Context, task *models.ResearchTask, to string, note string, updates map[string]any) {
	from := task.Status
	if !transitionAllowed(from, to) {
		if o.Logger != nil {
			o.Logger.Error("invalid task transition rejected",
				zap.String("task_id", task.ID),
				zap.String("from", from),
				zap.String("to", to),
			)
		}
		return
	}
	if err := o.Repo.UpdateResearchTaskStatus(ctx, task.ID, to, updates); err != nil {
		if o.Logger != nil {
			o.Logger.Warn("persist task transition failed", zap.String("task_id", task.ID), zap.Error(err))
		}
		return
	}
	task.Status = to
	o.audit(ctx, task.ID, from, to, note)
}

func (o *Orchestrator) audit(ctx context.Context, taskID, from, to, note string) {
	err := o.Repo.InsertTaskEvent(ctx, &models.TaskEvent{
		TaskID:     taskID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	})
	if err != nil && o.Logger != nil {
		o.Logger.Warn("persist task event failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (o *Orchestrator) defaultModel(technique string) string {
	switch technique {
	case TechniqueDeepResearch:
		return o.Config.DeepResearchModel
	case TechniqueQuickSearch:
		return o.Config.QuickSearchModel
	case TechniqueSynthesis:
		return o.Config.SynthesisModel
	}
	return ""
}

func (o *Orchestrator) nowUTC() time.Time {
	if o.now != nil {
		return o.now().UTC()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) sleepFor(ctx context.Context, d time.Duration) error {
	if o.sleep != nil {
		return o.sleep(ctx, d)
	}
	if d <= 0 {
		d = 15 * time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalizeSources(taskID string, findings []SourceFinding) []models.ResearchSource {
	out := make([]models.ResearchSource, 0, len(findings))
	seen := map[string]struct{}{}
	for _, f := range findings {
		u := strings.TrimSpace(f.URL)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, models.ResearchSource{
			TaskID:          taskID,
			URL:             u,
			Title:           strings.TrimSpace(f.Title),
			DomainAuthority: clamp01(f.DomainAuthority),
			PublishedAt:     f.PublishedAt,
			Relevance:       clamp01(f.Relevance),
		})
	}
	return out
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		out = append(out, val)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
