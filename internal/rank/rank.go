package rank

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"newscurator/internal/judge"
	"newscurator/internal/llm"
	"newscurator/internal/news"
)

const rankPrompt = `You are assessing the impact of AI news. Score each record on two dimensions.

tech_impact, 1-5:
- 5 paradigm shift: a new architecture or theory that could redirect a field (e.g. the Transformer).
- 4 major breakthrough: a large capability jump, or a strong foundation model open-sourced.
- 3 significant improvement: an important refinement of existing methods, or a very useful tool or framework.
- 2 routine optimization: small performance gains or an ordinary version bump.
- 1 incremental: a minor update.

industry_scope, 1-5:
- 5 industry-wide: affects nearly every AI developer and company.
- 4 multi-domain: affects several major application areas (e.g. NLP and CV).
- 3 vertical: deeply affects one vertical (e.g. AI for science).
- 2 task-specific: affects one or a few concrete tasks.
- 1 niche: very limited reach.

Records:
%s

Respond with ONLY a JSON array, one object per record:
[
  {"id": "...", "tech_impact": 5, "industry_scope": 4},
  {"id": "...", "tech_impact": 3, "industry_scope": 3}
]`

// Result holds the results of a ranking run.
type Result struct {
	Scored        int
	FailedBatches int
	Tiers         map[news.Tier]int
}

// Stage scores retained records and assigns tiers.
type Stage struct {
	caller    *judge.Caller
	batchSize int
}

// New creates a rank stage.
func New(provider llm.Provider, batchSize, maxRetries int, pause time.Duration, temperature float64) *Stage {
	return &Stage{
		caller: &judge.Caller{
			Provider:    provider,
			MaxRetries:  maxRetries,
			Pause:       pause,
			Temperature: temperature,
		},
		batchSize: batchSize,
	}
}

// Run scores the records that survived dedup. The two judged sub-scores come
// from the oracle; hype, the composite score, and the tier are computed
// deterministically afterwards, so re-running the computation over an
// already-scored set yields identical values.
func (s *Stage) Run(ctx context.Context, records []*news.Record) *Result {
	var retained []*news.Record
	for _, rec := range records {
		if rec.Retained() {
			retained = append(retained, rec)
		}
	}

	jr := s.caller.Run(ctx, retained, s.batchSize, buildPrompt, applyScores, nil)

	r := &Result{FailedBatches: jr.FailedBatches, Tiers: make(map[news.Tier]int)}
	for _, rec := range retained {
		// Missing sub-scores (failed batch, discarded entry, omitted record)
		// default to the minimum: the record stays in the report but is
		// never over-ranked by a failure.
		if rec.TechImpact < 1 {
			rec.TechImpact = 1
		}
		if rec.IndustryScope < 1 {
			rec.IndustryScope = 1
		}
		Score(rec)
		r.Scored++
		r.Tiers[rec.Tier]++
	}

	log.Printf("Ranking complete: %d scored (S:%d A:%d B:%d C:%d)",
		r.Scored, r.Tiers[news.TierS], r.Tiers[news.TierA], r.Tiers[news.TierB], r.Tiers[news.TierC])
	return r
}

// Score derives hype, the composite score, and the tier for one record from
// its judged sub-scores and event size. Pure and idempotent.
func Score(rec *news.Record) {
	rec.HypeScore = HypeScore(rec.EventSize)
	rec.FinalScore = FinalScore(rec.TechImpact, rec.IndustryScope, rec.HypeScore)
	rec.Tier = TierFor(rec.FinalScore)
}

// HypeScore maps an event's member count to a 1-5 heat score.
func HypeScore(eventSize int) int {
	switch {
	case eventSize > 20:
		return 5
	case eventSize > 10:
		return 4
	case eventSize > 5:
		return 3
	case eventSize > 2:
		return 2
	default:
		return 1
	}
}

// FinalScore is the weighted composite of the three sub-scores.
func FinalScore(techImpact, industryScope, hypeScore int) float64 {
	return float64(techImpact)*0.5 + float64(industryScope)*0.3 + float64(hypeScore)*0.2
}

// TierFor maps a composite score to its tier. Bands are closed below and
// open above: 4.2 is S, 3.5 is A, 2.8 is B.
func TierFor(score float64) news.Tier {
	switch {
	case score >= 4.2:
		return news.TierS
	case score >= 3.5:
		return news.TierA
	case score >= 2.8:
		return news.TierB
	default:
		return news.TierC
	}
}

func buildPrompt(batch []*news.Record) string {
	type entry struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Source  string `json:"source"`
	}
	entries := make([]entry, len(batch))
	for i, rec := range batch {
		entries[i] = entry{ID: rec.ID, Title: rec.Title, Summary: rec.Summary, Source: rec.Source}
	}
	data, _ := json.MarshalIndent(entries, "", "  ")
	return fmt.Sprintf(rankPrompt, string(data))
}

func applyScores(rec *news.Record, entry map[string]any) error {
	tech := judge.Int(entry, "tech_impact")
	scope := judge.Int(entry, "industry_scope")
	if tech < 1 || tech > 5 {
		return fmt.Errorf("tech_impact %d out of range", tech)
	}
	if scope < 1 || scope > 5 {
		return fmt.Errorf("industry_scope %d out of range", scope)
	}
	rec.TechImpact = tech
	rec.IndustryScope = scope
	return nil
}
