package filter

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

// Records with less body text than this are dropped before any oracle call.
const minBodyLength = 50

const filterPrompt = `You are an expert screener of AI technology news. Decide for each record below whether it is retained or dropped.

RETAIN if ANY of these hold (checked first):
1. Technical or capability progress: the core content is a concrete advance in AI models, systems, engineering, or applied capability.
2. Key domains: foundation models, training or inference methods, data engineering, AI infrastructure, agent frameworks, or closely related technical products.
3. Authoritative source: an academic paper (e.g. arXiv), an official technical blog, an official product release page, or GitHub release notes.

DROP if ANY of these hold:
1. Business/finance: stock prices, valuations, funding, IPOs, earnings, revenue, user counts, acquisitions.
2. Market commentary: investment opinions, market sentiment, capital movements, or partnerships with no direct technical substance.
3. Secondary commentary: personal takes, long-form pundit analysis, or tweet roundups without citations.
4. Unattributed: no identifiable source, or sourced from anonymous forums or chat screenshots.

Records:
%s

Respond with ONLY a JSON array, one object per record:
[
  {"id": "...", "filter_decision": "kept", "filter_reason": "one-sentence justification"},
  {"id": "...", "filter_decision": "dropped", "filter_reason": "one-sentence justification"}
]`

// Result holds the results of a filter run.
type Result struct {
	Input         int
	Kept          int
	Dropped       int
	FailedBatches int
}

// Stage marks every record kept or dropped with a reason.
type Stage struct {
	caller    *judge.Caller
	batchSize int
}

// New creates a filter stage.
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

// Run filters all records in place. After it returns, every record carries a
// filter decision and a non-empty reason.
func (s *Stage) Run(ctx context.Context, records []*news.Record) *Result {
	r := &Result{Input: len(records)}

	// Deterministic pre-filter: too little body text to assess.
	var pending []*news.Record
	for _, rec := range records {
		if len(rec.Body) < minBodyLength && len(rec.Summary) < minBodyLength {
			rec.FilterDecision = news.FilterDropped
			rec.FilterReason = "too little content to assess"
			continue
		}
		pending = append(pending, rec)
	}

	jr := s.caller.Run(ctx, pending, s.batchSize, buildPrompt, applyDecision, fallbackKeep)
	r.FailedBatches = jr.FailedBatches

	// A successful batch may still omit a record; default those to kept so
	// no record silently disappears.
	for _, rec := range pending {
		if rec.FilterDecision == news.FilterUndecided {
			rec.FilterDecision = news.FilterKept
			rec.FilterReason = "no decision returned; kept by default"
		}
	}

	for _, rec := range records {
		if rec.FilterDecision == news.FilterKept {
			r.Kept++
		} else {
			r.Dropped++
		}
	}

	log.Printf("Filter complete: %d kept, %d dropped of %d records", r.Kept, r.Dropped, r.Input)
	return r
}

func buildPrompt(batch []*news.Record) string {
	type entry struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Snippet string `json:"content_snippet"`
		Source  string `json:"source"`
		Link    string `json:"link"`
	}
	entries := make([]entry, len(batch))
	for i, rec := range batch {
		entries[i] = entry{
			ID:      rec.ID,
			Title:   rec.Title,
			Summary: rec.Summary,
			Snippet: snippet(rec.Body, 300),
			Source:  rec.Source,
			Link:    rec.Link,
		}
	}
	data, _ := json.MarshalIndent(entries, "", "  ")
	return fmt.Sprintf(filterPrompt, string(data))
}

func applyDecision(rec *news.Record, entry map[string]any) error {
	decision := judge.Str(entry, "filter_decision")
	if decision != string(news.FilterKept) && decision != string(news.FilterDropped) {
		return fmt.Errorf("unknown filter_decision %q", decision)
	}

	reason := judge.Str(entry, "filter_reason")
	if reason == "" {
		reason = "no reason provided"
	}

	rec.FilterDecision = news.FilterDecision(decision)
	rec.FilterReason = reason
	return nil
}

// fallbackKeep defaults a failed batch to kept: false positives cost a later
// stage some work, silent data loss costs the report real news.
func fallbackKeep(batch []*news.Record) {
	for _, rec := range batch {
		rec.FilterDecision = news.FilterKept
		rec.FilterReason = "fallback: retry budget exhausted, kept conservatively"
	}
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
