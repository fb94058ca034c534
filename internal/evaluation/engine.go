package evaluation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"polyresearch/internal/config"
	"polyresearch/internal/models"
	"polyresearch/internal/research"
	"polyresearch/internal/sizing"
)

// Store is the persistence surface the engine needs. Satisfied by
// repository.Repository.
type Store interface {
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)
	UpdateMarketStatus(ctx context.Context, id string, status string) error
	ListCompletedResearchTasksByMarket(ctx context.Context, marketID string) ([]models.ResearchTask, error)
	ListResearchSourcesByTaskIDs(ctx context.Context, taskIDs []string) ([]models.ResearchSource, error)
	InsertEvaluation(ctx context.Context, item *models.Evaluation) error
}

// Engine scores completed research into an immutable Evaluation. It never
// mutates markets beyond their workflow status, and never touches tasks.
type Engine struct {
	Repo      Store
	Estimator Estimator
	Logger    *zap.Logger
	Config    config.EvaluationConfig
	Sizing    config.SizingConfig

	now func() time.Time
}

var one = decimal.NewFromInt(1)

// EvaluateMarket runs the full pipeline stage: gather completed research,
// compute sub-scores, obtain a probability estimate, apply the alpha gate
// and floor/ceiling guard, size the position, and persist a new record.
func (e *Engine) EvaluateMarket(ctx context.Context, marketID string) (*models.Evaluation, error) {
	market, err := e.Repo.GetMarketByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, &research.DataError{Msg: "market not found: " + marketID}
	}
	tasks, err := e.Repo.ListCompletedResearchTasksByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, &research.DataError{Msg: "no completed research tasks for market " + marketID}
	}
	marketPrice, ok := market.YesPrice()
	if !ok {
		return nil, &research.DataError{Msg: "market has no usable outcome prices: " + marketID}
	}

	taskIDs := make([]string, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}
	sources, err := e.Repo.ListResearchSourcesByTaskIDs(ctx, taskIDs)
	if err != nil {
		return nil, err
	}

	now := e.nowUTC()
	authenticity := authenticityScore(sources, e.Config.TopSources, now)
	confidence := confidenceScore(tasks)
	liquidity := 0.0
	if market.Liquidity != nil {
		liquidity = market.Liquidity.InexactFloat64()
	}
	sizingSub := sizingScore(liquidity, e.Sizing.MaxPositionPercent)
	composite := compositeScore(authenticity, confidence, sizingSub)

	est, err := e.Estimator.Estimate(ctx, *market, tasks, sources)
	if err != nil {
		return nil, err
	}

	// Direction defaults to the side our estimate favors when the estimator
	// declines to pick one.
	direction := est.Direction
	if direction != models.DirectionYes && direction != models.DirectionNo {
		if est.Probability.GreaterThanOrEqual(marketPrice) {
			direction = models.DirectionYes
		} else {
			direction = models.DirectionNo
		}
	}

	// Probability and price for the chosen side.
	sideProb := est.Probability
	sidePrice := marketPrice
	if direction == models.DirectionNo {
		sideProb = one.Sub(est.Probability)
		sidePrice = one.Sub(marketPrice)
	}
	edge := sideProb.Sub(sidePrice)

	// Alpha-seeking gate: a numeric edge alone never justifies a trade. The
	// estimator must claim an advantage and state a thesis.
	recommend := est.RecommendTrade &&
		est.Advantage != models.AdvantageNone &&
		est.Thesis != ""

	// Floor/ceiling guard: when both the estimate and the price sit beyond
	// the calibration bound on the same side, the edge is indistinguishable
	// from estimator artifact.
	floor := decimal.NewFromFloat(e.Config.FloorProbability)
	ceiling := decimal.NewFromFloat(e.Config.CeilingProbability)
	guard := (est.Probability.LessThanOrEqual(floor) && marketPrice.LessThanOrEqual(floor)) ||
		(est.Probability.GreaterThanOrEqual(ceiling) && marketPrice.GreaterThanOrEqual(ceiling))
	if guard {
		recommend = false
	}

	position := sizing.Size(sizing.Inputs{
		RecommendTrade: recommend,
		GuardTriggered: guard,
		CompositeScore: composite,
		Probability:    sideProb,
		MarketPrice:    sidePrice,
		Direction:      direction,
	}, sizing.ConstraintsFromConfig(e.Sizing))

	idsJSON, _ := json.Marshal(taskIDs)
	eval := &models.Evaluation{
		MarketID:          market.ID,
		TaskIDs:           datatypes.JSON(idsJSON),
		AuthenticityScore: authenticity,
		ConfidenceScore:   confidence,
		SizingScore:       sizingSub,
		CompositeScore:    composite,
		Probability:       est.Probability,
		MarketPrice:       marketPrice,
		Edge:              edge,
		RecommendTrade:    recommend,
		Advantage:         est.Advantage,
		Reasoning:         est.Reasoning,
		GuardTriggered:    guard,
		PositionPercent:   position,
	}
	if recommend || est.Advantage != models.AdvantageNone {
		eval.Direction = &direction
	}
	if est.Thesis != "" {
		thesis := est.Thesis
		eval.Thesis = &thesis
	}

	if err := e.Repo.InsertEvaluation(ctx, eval); err != nil {
		return nil, err
	}
	if market.Status == models.MarketStatusWatching || market.Status == models.MarketStatusResearching {
		if err := e.Repo.UpdateMarketStatus(ctx, market.ID, models.MarketStatusEvaluated); err != nil && e.Logger != nil {
			e.Logger.Warn("mark market evaluated failed", zap.String("market_id", market.ID), zap.Error(err))
		}
	}

	if e.Logger != nil {
		e.Logger.Info("market evaluated",
			zap.String("market_id", market.ID),
			zap.Int("composite", composite),
			zap.String("edge", edge.StringFixed(4)),
			zap.Bool("recommend", recommend),
			zap.Bool("guard", guard),
			zap.String("position_pct", position.StringFixed(4)),
		)
	}
	return eval, nil
}

func (e *Engine) nowUTC() time.Time {
	if e.now != nil {
		return e.now().UTC()
	}
	return time.Now().UTC()
}
