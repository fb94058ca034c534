package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"polyresearch/internal/config"
	"polyresearch/internal/models"
)

// Store is the persistence surface snapshot sync needs.
type Store interface {
	UpsertMarkets(ctx context.Context, items []models.Market) error
}

// SyncService pages open markets out of Gamma and upserts snapshots. The
// upsert never touches the status column, so workflow transitions survive
// every sync.
type SyncService struct {
	Store  Store
	Gamma  *GammaClient
	Logger *zap.Logger
	Config config.MarketSyncConfig
}

type SyncResult struct {
	Pages   int  `json:"pages"`
	Markets int  `json:"markets"`
	Done    bool `json:"done"`
}

func (s *SyncService) Sync(ctx context.Context) (SyncResult, error) {
	limit := s.Config.PageLimit
	if limit <= 0 {
		limit = 200
	}
	maxPages := s.Config.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	closed := false
	now := time.Now().UTC()
	result := SyncResult{}
	offset := 0
	for page := 0; page < maxPages; page++ {
		items, raws, err := s.Gamma.GetMarkets(ctx, &GetMarketsParams{
			Limit:  limit,
			Offset: offset,
			Closed: &closed,
		})
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("market sync page failed", zap.Int("offset", offset), zap.Error(err))
			}
			return result, err
		}
		if len(items) == 0 {
			result.Done = true
			break
		}

		markets := make([]models.Market, 0, len(items))
		for i, item := range items {
			market, ok := mapMarket(item, now)
			if !ok {
				continue
			}
			if i < len(raws) {
				market.RawJSON = datatypes.JSON(raws[i])
			}
			markets = append(markets, market)
		}
		if err := s.Store.UpsertMarkets(ctx, markets); err != nil {
			return result, err
		}

		result.Pages++
		result.Markets += len(markets)
		offset += len(items)
		if len(items) < limit {
			result.Done = true
			break
		}
	}

	if s.Logger != nil {
		s.Logger.Info("market sync finished",
			zap.Int("pages", result.Pages),
			zap.Int("markets", result.Markets),
			zap.Bool("done", result.Done),
		)
	}
	return result, nil
}

func mapMarket(item GammaMarket, now time.Time) (models.Market, bool) {
	if item.ID == "" || strings.TrimSpace(item.Question) == "" {
		return models.Market{}, false
	}
	outcomes := DecodeStringArray(item.Outcomes)
	prices := DecodeStringArray(item.OutcomePrices)
	if len(outcomes) == 0 || len(prices) == 0 {
		return models.Market{}, false
	}
	outcomesJSON, _ := json.Marshal(outcomes)
	pricesJSON, _ := json.Marshal(prices)

	market := models.Market{
		ID:            item.ID,
		Question:      strings.TrimSpace(item.Question),
		Outcomes:      datatypes.JSON(outcomesJSON),
		OutcomePrices: datatypes.JSON(pricesJSON),
		Status:        models.MarketStatusWatching,
		LastSyncedAt:  now,
	}
	if slug := strings.TrimSpace(item.Slug); slug != "" {
		market.Slug = &slug
	}
	if item.VolumeNum > 0 {
		v := decimal.NewFromFloat(item.VolumeNum)
		market.Volume = &v
	}
	if item.LiquidityNum > 0 {
		l := decimal.NewFromFloat(item.LiquidityNum)
		market.Liquidity = &l
	}
	if ts := parseGammaTime(item.EndDate); ts != nil {
		market.EndDate = ts
	}
	return market, true
}

func parseGammaTime(val string) *time.Time {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
		if ts, err := time.Parse(layout, val); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
