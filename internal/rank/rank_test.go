package rank

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"newscurator/internal/news"
)

type mockProvider struct {
	response string
	err      error
	calls    int
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ float64) (string, error) {
	m.calls++
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func retained(id string, eventSize int) *news.Record {
	return &news.Record{
		ID:             id,
		Title:          "Title " + id,
		FilterDecision: news.FilterKept,
		EventID:        "evt_" + id,
		EventSize:      eventSize,
		DedupDecision:  news.DedupKept,
	}
}

func TestHypeScoreBuckets(t *testing.T) {
	cases := map[int]int{
		1: 1, 2: 1,
		3: 2, 5: 2,
		6: 3, 10: 3,
		11: 4, 20: 4,
		21: 5, 100: 5,
	}
	for size, want := range cases {
		if got := HypeScore(size); got != want {
			t.Errorf("HypeScore(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestFinalScoreFormula(t *testing.T) {
	// event_size 7 -> hype 3; tech 5, scope 4: 2.5+1.2+0.6 = 4.3 -> S
	if got := FinalScore(5, 4, 3); math.Abs(got-4.3) > 1e-9 {
		t.Errorf("FinalScore(5,4,3) = %v, want 4.3", got)
	}
	// event_size 4 -> hype 2; tech 3, scope 3: 1.5+0.9+0.4 = 2.8 -> B
	if got := FinalScore(3, 3, 2); math.Abs(got-2.8) > 1e-9 {
		t.Errorf("FinalScore(3,3,2) = %v, want 2.8", got)
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  news.Tier
	}{
		{4.2, news.TierS},
		{4.19, news.TierA},
		{3.5, news.TierA},
		{3.49, news.TierB},
		{2.8, news.TierB},
		{2.79, news.TierC},
		{1.0, news.TierC},
		{5.0, news.TierS},
	}
	for _, c := range cases {
		if got := TierFor(c.score); got != c.want {
			t.Errorf("TierFor(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestRunScoresRetainedRecords(t *testing.T) {
	rec := retained("a", 7)
	resp, _ := json.Marshal([]map[string]any{
		{"id": "a", "tech_impact": 5, "industry_scope": 4},
	})

	stage := New(&mockProvider{response: string(resp)}, 20, 3, 0, 0.1)
	result := stage.Run(context.Background(), []*news.Record{rec})

	if result.Scored != 1 {
		t.Fatalf("expected 1 scored, got %d", result.Scored)
	}
	if rec.HypeScore != 3 {
		t.Errorf("expected hype 3 for event size 7, got %d", rec.HypeScore)
	}
	if math.Abs(rec.FinalScore-4.3) > 1e-9 {
		t.Errorf("expected final score 4.3, got %v", rec.FinalScore)
	}
	if rec.Tier != news.TierS {
		t.Errorf("expected tier S, got %s", rec.Tier)
	}
}

func TestRunFallbackAssignsMinimumScores(t *testing.T) {
	rec := retained("a", 4)

	stage := New(&mockProvider{response: "not json"}, 20, 2, 0, 0.1)
	result := stage.Run(context.Background(), []*news.Record{rec})

	if result.FailedBatches != 1 {
		t.Errorf("expected 1 failed batch, got %d", result.FailedBatches)
	}
	if rec.TechImpact != 1 || rec.IndustryScope != 1 {
		t.Errorf("expected minimum sub-scores, got %d/%d", rec.TechImpact, rec.IndustryScope)
	}
	// Still scored and tiered, never excluded.
	if rec.Tier != news.TierC {
		t.Errorf("expected tier C, got %s", rec.Tier)
	}
}

func TestRunDiscardsOutOfRangeScores(t *testing.T) {
	rec := retained("a", 1)
	resp, _ := json.Marshal([]map[string]any{
		{"id": "a", "tech_impact": 9, "industry_scope": 3},
	})

	stage := New(&mockProvider{response: string(resp)}, 20, 1, 0, 0.1)
	stage.Run(context.Background(), []*news.Record{rec})

	if rec.TechImpact != 1 || rec.IndustryScope != 1 {
		t.Errorf("out-of-range entry should be discarded and default to 1/1, got %d/%d",
			rec.TechImpact, rec.IndustryScope)
	}
}

func TestRunSkipsNonRetainedRecords(t *testing.T) {
	removed := retained("x", 1)
	removed.DedupDecision = news.DedupRemoved

	provider := &mockProvider{response: "[]"}
	stage := New(provider, 20, 1, 0, 0.1)
	result := stage.Run(context.Background(), []*news.Record{removed})

	if provider.calls != 0 {
		t.Errorf("expected no oracle calls, got %d", provider.calls)
	}
	if result.Scored != 0 {
		t.Errorf("expected 0 scored, got %d", result.Scored)
	}
	if removed.Tier != "" {
		t.Errorf("removed record must not be tiered, got %s", removed.Tier)
	}
}

func TestScoreIdempotent(t *testing.T) {
	rec := retained("a", 12)
	rec.TechImpact = 4
	rec.IndustryScope = 3

	Score(rec)
	first := *rec
	Score(rec)

	if rec.HypeScore != first.HypeScore || rec.FinalScore != first.FinalScore || rec.Tier != first.Tier {
		t.Error("re-scoring an already-scored record changed its values")
	}
	if rec.HypeScore != 4 {
		t.Errorf("expected hype 4 for event size 12, got %d", rec.HypeScore)
	}
}
