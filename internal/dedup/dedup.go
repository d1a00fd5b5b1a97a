package dedup

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

const dedupPrompt = `You are deduplicating AI news. The records below all describe the same event. Select exactly ONE to retain; mark every other record removed.

Authority ranking, highest first:
1. Official primary source: official site or blog post, arXiv paper, GitHub release.
2. Named practitioner commentary: the author, a core engineer, or an official researcher explaining the work.
3. Established media re-reporting of the above.
4. Social media reposts and other second-hand summaries.

Event: %s

Records:
%s

Respond with ONLY a JSON array covering every record, with exactly one "kept":
[
  {"id": "...", "dedup_decision": "kept", "dedup_reason": "official blog post"},
  {"id": "...", "dedup_decision": "removed", "dedup_reason": "re-reporting"}
]`

// Result holds the results of a dedup run.
type Result struct {
	Events       int
	Kept         int
	Removed      int
	FailedEvents int
}

// Stage selects one representative record per event by authority ranking.
type Stage struct {
	caller *judge.Caller
	pause  time.Duration
}

// New creates a dedup stage.
func New(provider llm.Provider, maxRetries int, pause time.Duration, temperature float64) *Stage {
	return &Stage{
		caller: &judge.Caller{
			Provider:    provider,
			MaxRetries:  maxRetries,
			Temperature: temperature,
		},
		pause: pause,
	}
}

// Run deduplicates clustered records in place, one oracle call per
// multi-member event. Singleton events never reach the oracle.
func (s *Stage) Run(ctx context.Context, records []*news.Record) *Result {
	// Group by event id preserving ingestion order, both across groups and
	// within each group: the fallback keeps "first by ingestion order".
	groups := make(map[string][]*news.Record)
	var order []string
	for _, rec := range records {
		if !rec.Clustered() {
			continue
		}
		if _, ok := groups[rec.EventID]; !ok {
			order = append(order, rec.EventID)
		}
		groups[rec.EventID] = append(groups[rec.EventID], rec)
	}

	r := &Result{Events: len(order)}

	for i, eventID := range order {
		group := groups[eventID]

		if len(group) == 1 {
			group[0].DedupDecision = news.DedupKept
			group[0].DedupReason = "sole representative"
			continue
		}

		if i > 0 && s.pause > 0 {
			time.Sleep(s.pause)
		}
		log.Printf("Deduplicating event %s (%d records)", eventID, len(group))

		jr := s.caller.Run(ctx, group, len(group),
			func(batch []*news.Record) string {
				return buildPrompt(eventID, batch)
			},
			applyDecision,
			keepFirst,
		)
		if jr.FailedBatches > 0 {
			r.FailedEvents++
		}

		enforceSingleKept(group)
	}

	for _, eventID := range order {
		for _, rec := range groups[eventID] {
			if rec.DedupDecision == news.DedupKept {
				r.Kept++
			} else {
				r.Removed++
			}
		}
	}

	log.Printf("Dedup complete: %d kept, %d removed across %d events", r.Kept, r.Removed, r.Events)
	return r
}

func buildPrompt(eventID string, group []*news.Record) string {
	type entry struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Summary     string `json:"summary"`
		Source      string `json:"source"`
		Link        string `json:"link"`
		PublishedAt string `json:"published_at"`
	}
	entries := make([]entry, len(group))
	for i, rec := range group {
		entries[i] = entry{
			ID:          rec.ID,
			Title:       rec.Title,
			Summary:     rec.Summary,
			Source:      rec.Source,
			Link:        rec.Link,
			PublishedAt: rec.PublishedAt.Format("2006-01-02 15:04"),
		}
	}
	data, _ := json.MarshalIndent(entries, "", "  ")
	return fmt.Sprintf(dedupPrompt, eventID, string(data))
}

func applyDecision(rec *news.Record, entry map[string]any) error {
	decision := judge.Str(entry, "dedup_decision")
	if decision != string(news.DedupKept) && decision != string(news.DedupRemoved) {
		return fmt.Errorf("unknown dedup_decision %q", decision)
	}

	reason := judge.Str(entry, "dedup_reason")
	if reason == "" {
		reason = "no reason provided"
	}

	rec.DedupDecision = news.DedupDecision(decision)
	rec.DedupReason = reason
	return nil
}

// keepFirst is the retry-exhausted fallback: retain the first record in
// ingestion order, remove the rest.
func keepFirst(group []*news.Record) {
	for i, rec := range group {
		if i == 0 {
			rec.DedupDecision = news.DedupKept
			rec.DedupReason = "fallback: retry exhausted"
		} else {
			rec.DedupDecision = news.DedupRemoved
			rec.DedupReason = "fallback: retry exhausted"
		}
	}
}

// enforceSingleKept repairs oracle output that violated the one-kept
// contract: the first kept member wins, everything else is removed, and a
// group with no kept member falls back to its first record.
func enforceSingleKept(group []*news.Record) {
	seenKept := false
	for _, rec := range group {
		switch {
		case rec.DedupDecision == news.DedupKept && !seenKept:
			seenKept = true
		case rec.DedupDecision == news.DedupKept:
			rec.DedupDecision = news.DedupRemoved
			rec.DedupReason = "duplicate keep normalized to single representative"
		case rec.DedupDecision == news.DedupUndecided:
			rec.DedupDecision = news.DedupRemoved
			rec.DedupReason = "no decision returned"
		}
	}
	if !seenKept {
		group[0].DedupDecision = news.DedupKept
		group[0].DedupReason = "no keep returned; first record retained"
	}
}
