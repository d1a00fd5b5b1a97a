package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"newscurator/internal/judge"
	"newscurator/internal/llm"
	"newscurator/internal/news"
)

const clusterPrompt = `You are an expert at grouping AI news by underlying event. Assign each record below an event identifier.

Rules:
- Records describing the same technical event (the same model release, the same paper, the same breakthrough) share one event_id.
- An event is one concrete occurrence: "GPT-5 release", "Llama 3.1 open-sourced", "DeepMind publishes new AlphaFold method".
- event_id is a short meaningful English token in snake_case, e.g. gpt5_release, llama3_1_opensource.
- If a record matches an already-registered event below, reuse that exact event_id instead of minting a new one.
%s
Records:
%s

Respond with ONLY a JSON array, one object per record:
[
  {"id": "...", "event_id": "gpt5_release"},
  {"id": "...", "event_id": "llama3_1_opensource"}
]`

// Result holds the results of a clustering run.
type Result struct {
	Clustered     int
	Unclustered   int
	Events        int
	FailedBatches int
}

// Registry maps event identifiers to a short description, in registration
// order. It is scoped to one pipeline run; an identifier, once registered,
// is never changed.
type Registry struct {
	order []string
	desc  map[string]string
}

// NewRegistry creates an empty event registry.
func NewRegistry() *Registry {
	return &Registry{desc: make(map[string]string)}
}

// Register records an event identifier with a description. Re-registering
// an existing identifier is a no-op.
func (g *Registry) Register(id, description string) {
	if _, ok := g.desc[id]; ok {
		return
	}
	g.order = append(g.order, id)
	g.desc[id] = description
}

// Len returns the number of registered events.
func (g *Registry) Len() int {
	return len(g.order)
}

// IDs returns the registered identifiers in registration order.
func (g *Registry) IDs() []string {
	return append([]string(nil), g.order...)
}

// summary renders the registry for inclusion in a batch prompt.
func (g *Registry) summary() string {
	if len(g.order) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nAlready-registered events (reuse these ids where they apply):\n")
	for _, id := range g.order {
		fmt.Fprintf(&b, "- %s: %s\n", id, g.desc[id])
	}
	return b.String()
}

// Stage assigns event identifiers to kept records.
type Stage struct {
	caller    *judge.Caller
	batchSize int
}

// New creates a cluster stage.
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

// Run clusters the kept records in place. Batches must run strictly in
// order: each batch's prompt includes every identifier registered by the
// batches before it, so the oracle can reuse an id for a record describing
// an already-seen event instead of minting a duplicate.
func (s *Stage) Run(ctx context.Context, records []*news.Record) *Result {
	var kept []*news.Record
	for _, rec := range records {
		if rec.Kept() {
			kept = append(kept, rec)
		}
	}

	registry := NewRegistry()

	jr := s.caller.Run(ctx, kept, s.batchSize,
		func(batch []*news.Record) string {
			return buildPrompt(batch, registry)
		},
		func(rec *news.Record, entry map[string]any) error {
			return assign(rec, entry, registry)
		},
		func(batch []*news.Record) {
			// Unclusterable records stay without an event id and are
			// excluded from every later stage, never merged into an
			// arbitrary event.
			for _, rec := range batch {
				log.Printf("Excluding unclusterable record %s: %s", rec.ID, rec.Title)
			}
		},
	)

	ComputeEventSizes(records)

	r := &Result{Events: registry.Len(), FailedBatches: jr.FailedBatches}
	for _, rec := range kept {
		if rec.EventID != "" {
			r.Clustered++
		} else {
			r.Unclustered++
		}
	}

	log.Printf("Clustering complete: %d events from %d records (%d unclusterable)",
		r.Events, r.Clustered, r.Unclustered)
	return r
}

// ComputeEventSizes recounts event membership over kept records and writes
// the size onto every member. Pure and idempotent; call it again whenever
// membership changes.
func ComputeEventSizes(records []*news.Record) {
	counts := make(map[string]int)
	for _, rec := range records {
		if rec.Kept() && rec.EventID != "" {
			counts[rec.EventID]++
		}
	}
	for _, rec := range records {
		if rec.Kept() && rec.EventID != "" {
			rec.EventSize = counts[rec.EventID]
		}
	}
}

func buildPrompt(batch []*news.Record, registry *Registry) string {
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
	return fmt.Sprintf(clusterPrompt, registry.summary(), string(data))
}

func assign(rec *news.Record, entry map[string]any, registry *Registry) error {
	id := normalizeEventID(judge.Str(entry, "event_id"))
	if id == "" {
		return fmt.Errorf("missing event_id")
	}
	rec.EventID = id
	registry.Register(id, describe(rec))
	return nil
}

// normalizeEventID canonicalizes oracle-minted identifiers so trivial
// variations ("GPT5 Release" vs "gpt5_release") land on the same event.
func normalizeEventID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "-", "_")
	var b strings.Builder
	for _, r := range id {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

func describe(rec *news.Record) string {
	title := rec.Title
	if len(title) > 80 {
		title = title[:80] + "..."
	}
	return title
}
