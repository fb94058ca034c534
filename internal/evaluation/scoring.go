package evaluation

import (
	"math"
	"sort"
	"time"

	"polyresearch/internal/models"
)

// Recency decay buckets for source authenticity. Sources without a
// publication date sit in the middle bucket.
func recencyFactor(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 0.5
	}
	age := now.Sub(*publishedAt)
	switch {
	case age <= 7*24*time.Hour:
		return 1.0
	case age <= 30*24*time.Hour:
		return 0.85
	case age <= 90*24*time.Hour:
		return 0.7
	case age <= 365*24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

// authenticityScore rates evidence quality from the top-N sources ranked by
// relevance: per-source contribution blends domain authority with relevance
// and decays with age, then corroboration bonuses reward breadth.
func authenticityScore(sources []models.ResearchSource, topN int, now time.Time) int {
	if len(sources) == 0 {
		return 0
	}
	if topN <= 0 {
		topN = 10
	}
	ranked := make([]models.ResearchSource, len(sources))
	copy(ranked, sources)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	total := 0.0
	for _, s := range ranked {
		quality := 0.6*s.DomainAuthority + 0.4*s.Relevance
		total += 100 * quality * recencyFactor(s.PublishedAt, now)
	}
	score := total / float64(len(ranked))

	if len(sources) >= 5 {
		score += 5
	}
	if len(sources) >= 10 {
		score += 5
	}
	return clampScore(score)
}

// confidenceScore rates how much completed research backs the market: bonuses
// for task count, extracted facts, and summary density are all capped so no
// single dimension dominates, and contradictions carry a capped penalty.
func confidenceScore(tasks []models.ResearchTask) int {
	if len(tasks) == 0 {
		return 0
	}
	facts := 0
	contradictions := 0
	summaryLen := 0
	for _, t := range tasks {
		facts += len(t.KeyFactList())
		contradictions += len(t.ContradictionList())
		summaryLen += len(t.Summary)
	}

	score := 35.0
	score += math.Min(18, 6*float64(len(tasks)))
	score += math.Min(15, 1.5*float64(facts))
	score -= math.Min(21, 7*float64(contradictions))
	score += math.Min(10, 10*float64(summaryLen)/400)
	return clampScore(score)
}

// sizingScore rates execution feasibility: mostly a liquidity-tier lookup,
// plus a small headroom bonus from the configured position cap.
func sizingScore(liquidity float64, maxPositionPercent float64) int {
	var tier float64
	switch {
	case liquidity >= 100_000:
		tier = 90
	case liquidity >= 25_000:
		tier = 75
	case liquidity >= 5_000:
		tier = 55
	case liquidity >= 1_000:
		tier = 40
	default:
		tier = 25
	}
	bonus := math.Min(10, 2*maxPositionPercent)
	return clampScore(tier + bonus)
}

func compositeScore(authenticity, confidence, sizing int) int {
	score := 0.40*float64(authenticity) + 0.35*float64(confidence) + 0.25*float64(sizing)
	return clampScore(score)
}

func clampScore(v float64) int {
	rounded := int(math.Round(v))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
