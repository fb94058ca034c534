package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"polyresearch/internal/config"
	"polyresearch/internal/models"
	"polyresearch/internal/research"
)

type stubStore struct {
	market    *models.Market
	tasks     []models.ResearchTask
	sources   []models.ResearchSource
	inserted  []*models.Evaluation
	newStatus string
}

func (s *stubStore) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	return s.market, nil
}

func (s *stubStore) UpdateMarketStatus(ctx context.Context, id string, status string) error {
	s.newStatus = status
	return nil
}

func (s *stubStore) ListCompletedResearchTasksByMarket(ctx context.Context, marketID string) ([]models.ResearchTask, error) {
	return s.tasks, nil
}

func (s *stubStore) ListResearchSourcesByTaskIDs(ctx context.Context, taskIDs []string) ([]models.ResearchSource, error) {
	return s.sources, nil
}

func (s *stubStore) InsertEvaluation(ctx context.Context, item *models.Evaluation) error {
	s.inserted = append(s.inserted, item)
	return nil
}

type stubEstimator struct {
	estimate *Estimate
	err      error
}

func (s *stubEstimator) Estimate(ctx context.Context, market models.Market, tasks []models.ResearchTask, sources []models.ResearchSource) (*Estimate, error) {
	return s.estimate, s.err
}

func testMarket(yesPrice string) *models.Market {
	liquidity := decimal.NewFromInt(150_000)
	return &models.Market{
		ID:            "mkt-1",
		Question:      "Will the incumbent win?",
		Outcomes:      datatypes.JSON(`["Yes","No"]`),
		OutcomePrices: datatypes.JSON(`["` + yesPrice + `","0.55"]`),
		Liquidity:     &liquidity,
		Status:        models.MarketStatusResearching,
	}
}

func richEvidence() ([]models.ResearchTask, []models.ResearchSource) {
	tasks := []models.ResearchTask{completedTask(5, 0), completedTask(5, 0)}
	tasks[0].ID = "task-1"
	tasks[1].ID = "task-2"
	now := time.Now().UTC()
	sources := make([]models.ResearchSource, 6)
	for i := range sources {
		sources[i] = models.ResearchSource{
			TaskID:          "task-1",
			URL:             "https://example.com",
			DomainAuthority: 0.85,
			Relevance:       0.9,
			PublishedAt:     &now,
		}
	}
	return tasks, sources
}

func newEngine(store *stubStore, est Estimator) *Engine {
	return &Engine{
		Repo:      store,
		Estimator: est,
		Config: config.EvaluationConfig{
			TopSources:         10,
			FloorProbability:   0.06,
			CeilingProbability: 0.94,
		},
		Sizing: config.SizingConfig{
			MaxPositionPercent: 5,
			MinCompositeScore:  60,
			MinEdge:            0.02,
			KellyDampening:     0.5,
		},
	}
}

func TestEvaluateMarket_NoCompletedResearch(t *testing.T) {
	store := &stubStore{market: testMarket("0.45")}
	engine := newEngine(store, &stubEstimator{})
	_, err := engine.EvaluateMarket(context.Background(), "mkt-1")
	if !research.IsDataError(err) {
		t.Fatalf("err=%v want DataError", err)
	}
}

func TestEvaluateMarket_RecommendedTrade(t *testing.T) {
	store := &stubStore{market: testMarket("0.45")}
	store.tasks, store.sources = richEvidence()
	thesis := "Primary polling shows a durable lead the market has not priced."
	engine := newEngine(store, &stubEstimator{estimate: &Estimate{
		Probability:    decimal.NewFromFloat(0.72),
		Direction:      models.DirectionYes,
		Advantage:      models.AdvantageModerate,
		Thesis:         thesis,
		Reasoning:      "poll aggregation",
		RecommendTrade: true,
	}})

	eval, err := engine.EvaluateMarket(context.Background(), "mkt-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.RecommendTrade {
		t.Fatalf("want recommendation")
	}
	if eval.Direction == nil || *eval.Direction != models.DirectionYes {
		t.Fatalf("direction=%v want yes", eval.Direction)
	}
	wantEdge := decimal.NewFromFloat(0.27)
	if eval.Edge.Sub(wantEdge).Abs().GreaterThan(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("edge=%s want 0.27", eval.Edge.String())
	}
	if !eval.PositionPercent.GreaterThan(decimal.Zero) || !eval.PositionPercent.LessThan(decimal.NewFromInt(5)) {
		t.Fatalf("position=%s want in (0,5)", eval.PositionPercent.String())
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted=%d want 1", len(store.inserted))
	}
	if store.newStatus != models.MarketStatusEvaluated {
		t.Fatalf("market status=%q want evaluated", store.newStatus)
	}
}

func TestEvaluateMarket_AlphaGateBlocksNumericEdge(t *testing.T) {
	store := &stubStore{market: testMarket("0.45")}
	store.tasks, store.sources = richEvidence()
	// Big numeric edge, but no claimed advantage.
	engine := newEngine(store, &stubEstimator{estimate: &Estimate{
		Probability:    decimal.NewFromFloat(0.72),
		Direction:      models.DirectionYes,
		Advantage:      models.AdvantageNone,
		Reasoning:      "price looks wrong",
		RecommendTrade: true,
	}})

	eval, err := engine.EvaluateMarket(context.Background(), "mkt-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.RecommendTrade {
		t.Fatalf("numeric edge alone must not produce a recommendation")
	}
	if !eval.PositionPercent.IsZero() {
		t.Fatalf("position=%s want 0", eval.PositionPercent.String())
	}
}

func TestEvaluateMarket_FloorGuard(t *testing.T) {
	store := &stubStore{market: testMarket("0.03")}
	store.tasks, store.sources = richEvidence()
	// Nominal +2% edge inside the calibration floor.
	engine := newEngine(store, &stubEstimator{estimate: &Estimate{
		Probability:    decimal.NewFromFloat(0.05),
		Direction:      models.DirectionYes,
		Advantage:      models.AdvantageStrong,
		Thesis:         "Filing deadline already passed.",
		Reasoning:      "longshot",
		RecommendTrade: true,
	}})

	eval, err := engine.EvaluateMarket(context.Background(), "mkt-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.GuardTriggered {
		t.Fatalf("want floor guard triggered")
	}
	if eval.RecommendTrade {
		t.Fatalf("guard must suppress the recommendation")
	}
	if !eval.PositionPercent.IsZero() {
		t.Fatalf("position=%s want 0", eval.PositionPercent.String())
	}
}

func TestEvaluateMarket_EvaluationsAreAppendOnly(t *testing.T) {
	store := &stubStore{market: testMarket("0.45")}
	store.tasks, store.sources = richEvidence()
	engine := newEngine(store, &stubEstimator{estimate: &Estimate{
		Probability: decimal.NewFromFloat(0.5),
		Advantage:   models.AdvantageNone,
	}})

	if _, err := engine.EvaluateMarket(context.Background(), "mkt-1"); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	if _, err := engine.EvaluateMarket(context.Background(), "mkt-1"); err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(store.inserted) != 2 {
		t.Fatalf("inserted=%d want 2 distinct records", len(store.inserted))
	}
}
