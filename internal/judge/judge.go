package judge

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"newscurator/internal/llm"
	"newscurator/internal/news"
)

// PromptFunc builds the oracle prompt for one batch of records.
type PromptFunc func(batch []*news.Record) string

// ApplyFunc applies one parsed decision entry to its record. Returning an
// error discards the entry (unknown values, out-of-range scores); the rest
// of the batch's entries are still applied.
type ApplyFunc func(rec *news.Record, entry map[string]any) error

// FallbackFunc is invoked on a batch whose retries are exhausted. Each stage
// supplies its own deterministic degraded outcome.
type FallbackFunc func(batch []*news.Record)

// Caller runs batched judgment calls against an LLM provider with bounded
// retries and a stage-supplied fallback. Records are mutated in place; the
// caller never adds or removes records.
type Caller struct {
	Provider    llm.Provider
	MaxRetries  int
	Pause       time.Duration
	Temperature float64
}

// Result holds counters for one batched run.
type Result struct {
	Batches       int
	FailedBatches int
	Applied       int
	Discarded     int
}

// Run partitions records into consecutive batches of batchSize and processes
// them strictly in order. Batches are never parallelized: the cluster stage
// depends on earlier batches being applied before later prompts are built,
// and the other stages follow the same discipline.
func (c *Caller) Run(ctx context.Context, records []*news.Record, batchSize int, prompt PromptFunc, apply ApplyFunc, fallback FallbackFunc) *Result {
	if batchSize <= 0 {
		batchSize = 20
	}

	r := &Result{}
	total := (len(records) + batchSize - 1) / batchSize

	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]
		r.Batches++

		if r.Batches > 1 && c.Pause > 0 {
			time.Sleep(c.Pause)
		}
		log.Printf("Processing batch %d/%d (%d records)", r.Batches, total, len(batch))

		if !c.runBatch(ctx, batch, prompt, apply, r) {
			r.FailedBatches++
			if fallback != nil {
				fallback(batch)
			}
		}
	}

	return r
}

// runBatch attempts one batch up to MaxRetries times with unchanged inputs.
// Returns false once the retry budget is exhausted.
func (c *Caller) runBatch(ctx context.Context, batch []*news.Record, prompt PromptFunc, apply ApplyFunc, r *Result) bool {
	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	p := prompt(batch)
	index := news.ByID(batch)

	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := c.Provider.Generate(ctx, p, c.Temperature)
		if err != nil {
			log.Printf("Oracle call failed (attempt %d/%d): %v", attempt, attempts, err)
			continue
		}

		entries := llm.ParseJSONArray(response)
		if entries == nil {
			log.Printf("Unparseable oracle response (attempt %d/%d)", attempt, attempts)
			continue
		}

		for _, entry := range entries {
			rec, ok := index[Str(entry, "id")]
			if !ok {
				r.Discarded++
				continue
			}
			if err := apply(rec, entry); err != nil {
				log.Printf("Discarding decision for %s: %v", rec.ID, err)
				r.Discarded++
				continue
			}
			r.Applied++
		}
		return true
	}

	return false
}

// Str reads a string field from a decision entry, "" if absent.
func Str(entry map[string]any, key string) string {
	if v, ok := entry[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int reads an integer field from a decision entry, 0 if absent.
func Int(entry map[string]any, key string) int {
	if v, ok := entry[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return 0
}
