package evaluation

import (
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"polyresearch/internal/models"
)

func sourceAgedDays(days int, now time.Time) models.ResearchSource {
	ts := now.Add(-time.Duration(days) * 24 * time.Hour)
	return models.ResearchSource{
		URL:             "https://example.com",
		DomainAuthority: 0.8,
		Relevance:       0.75,
		PublishedAt:     &ts,
	}
}

func TestRecencyFactorBuckets(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		days int
		want float64
	}{
		{3, 1.0},
		{20, 0.85},
		{60, 0.7},
		{200, 0.5},
		{400, 0.3},
	}
	for _, tc := range cases {
		ts := now.Add(-time.Duration(tc.days) * 24 * time.Hour)
		if got := recencyFactor(&ts, now); got != tc.want {
			t.Fatalf("age %dd: factor=%v want %v", tc.days, got, tc.want)
		}
	}
	if got := recencyFactor(nil, now); got != 0.5 {
		t.Fatalf("unknown date: factor=%v want 0.5", got)
	}
}

func TestAuthenticityScore_NoSources(t *testing.T) {
	if got := authenticityScore(nil, 10, time.Now().UTC()); got != 0 {
		t.Fatalf("score=%d want 0", got)
	}
}

func TestAuthenticityScore_CorroborationBonus(t *testing.T) {
	now := time.Now().UTC()
	four := make([]models.ResearchSource, 4)
	five := make([]models.ResearchSource, 5)
	for i := range four {
		four[i] = sourceAgedDays(3, now)
	}
	for i := range five {
		five[i] = sourceAgedDays(3, now)
	}
	withFour := authenticityScore(four, 10, now)
	withFive := authenticityScore(five, 10, now)
	if withFive != withFour+5 {
		t.Fatalf("four=%d five=%d want five = four+5", withFour, withFive)
	}
}

func TestAuthenticityScore_RecencyDecay(t *testing.T) {
	now := time.Now().UTC()
	fresh := authenticityScore([]models.ResearchSource{sourceAgedDays(3, now)}, 10, now)
	old := authenticityScore([]models.ResearchSource{sourceAgedDays(400, now)}, 10, now)
	if fresh <= old {
		t.Fatalf("fresh=%d old=%d want fresh > old", fresh, old)
	}
}

func TestAuthenticityScore_Range(t *testing.T) {
	now := time.Now().UTC()
	sources := make([]models.ResearchSource, 20)
	for i := range sources {
		sources[i] = models.ResearchSource{
			URL:             "https://example.com",
			DomainAuthority: 1,
			Relevance:       1,
			PublishedAt:     &now,
		}
	}
	got := authenticityScore(sources, 10, now)
	if got < 0 || got > 100 {
		t.Fatalf("score=%d want in [0,100]", got)
	}
}

func completedTask(facts int, contradictions int) models.ResearchTask {
	factList := make([]string, facts)
	for i := range factList {
		factList[i] = "fact"
	}
	contraList := make([]string, contradictions)
	for i := range contraList {
		contraList[i] = "conflict"
	}
	return models.ResearchTask{
		Status:         models.TaskStatusCompleted,
		Summary:        strings.Repeat("x", 450),
		KeyFacts:       mustJSONList(factList),
		Contradictions: mustJSONList(contraList),
	}
}

func mustJSONList(items []string) datatypes.JSON {
	out := "["
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += `"` + item + `"`
	}
	out += "]"
	return datatypes.JSON(out)
}

func TestConfidenceScore_ContradictionsLowerScore(t *testing.T) {
	clean := []models.ResearchTask{completedTask(4, 0), completedTask(4, 0)}
	conflicted := []models.ResearchTask{completedTask(4, 2), completedTask(4, 0)}
	cleanScore := confidenceScore(clean)
	conflictedScore := confidenceScore(conflicted)
	if conflictedScore >= cleanScore {
		t.Fatalf("conflicted=%d clean=%d want conflicted < clean", conflictedScore, cleanScore)
	}
}

func TestConfidenceScore_BonusesAreCapped(t *testing.T) {
	few := []models.ResearchTask{completedTask(100, 0)}
	many := []models.ResearchTask{completedTask(200, 0)}
	if confidenceScore(few) != confidenceScore(many) {
		t.Fatalf("fact bonus not capped: few=%d many=%d", confidenceScore(few), confidenceScore(many))
	}
}

func TestConfidenceScore_Range(t *testing.T) {
	heavy := []models.ResearchTask{
		completedTask(0, 10),
	}
	got := confidenceScore(heavy)
	if got < 0 || got > 100 {
		t.Fatalf("score=%d want in [0,100]", got)
	}
}

func TestSizingScore_LiquidityTiers(t *testing.T) {
	cases := []struct {
		liquidity float64
		want      int
	}{
		{250_000, 100},
		{50_000, 85},
		{10_000, 65},
		{2_000, 50},
		{100, 35},
	}
	for _, tc := range cases {
		if got := sizingScore(tc.liquidity, 5); got != tc.want {
			t.Fatalf("liquidity %.0f: score=%d want %d", tc.liquidity, got, tc.want)
		}
	}
}

func TestCompositeScore_Weights(t *testing.T) {
	if got := compositeScore(80, 60, 40); got != 63 {
		t.Fatalf("composite=%d want 63", got)
	}
	if got := compositeScore(100, 100, 100); got != 100 {
		t.Fatalf("composite=%d want 100", got)
	}
	if got := compositeScore(0, 0, 0); got != 0 {
		t.Fatalf("composite=%d want 0", got)
	}
}
