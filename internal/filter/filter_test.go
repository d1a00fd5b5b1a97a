package filter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"newscurator/internal/news"
)

type mockProvider struct {
	response string
	err      error
	prompts  []string
}

func (m *mockProvider) Generate(_ context.Context, prompt string, _ float64) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func record(id, title string) *news.Record {
	return &news.Record{
		ID:    id,
		Title: title,
		Body:  strings.Repeat("Detailed technical content. ", 10),
	}
}

func TestFilterKeptAndDropped(t *testing.T) {
	recs := []*news.Record{record("a", "New training method"), record("b", "Startup raises $500M")}
	resp, _ := json.Marshal([]map[string]any{
		{"id": "a", "filter_decision": "kept", "filter_reason": "training technique advance"},
		{"id": "b", "filter_decision": "dropped", "filter_reason": "funding news"},
	})

	stage := New(&mockProvider{response: string(resp)}, 20, 3, 0, 0.1)
	result := stage.Run(context.Background(), recs)

	if result.Kept != 1 || result.Dropped != 1 {
		t.Errorf("expected 1 kept / 1 dropped, got %d/%d", result.Kept, result.Dropped)
	}
	if recs[0].FilterDecision != news.FilterKept {
		t.Errorf("expected record a kept, got %q", recs[0].FilterDecision)
	}
	if recs[1].FilterDecision != news.FilterDropped {
		t.Errorf("expected record b dropped, got %q", recs[1].FilterDecision)
	}
	if recs[1].FilterReason != "funding news" {
		t.Errorf("unexpected reason: %q", recs[1].FilterReason)
	}
}

func TestFilterEveryRecordGetsReason(t *testing.T) {
	recs := []*news.Record{record("a", "A"), record("b", "B")}
	// Oracle answers for a only, and without a reason.
	resp, _ := json.Marshal([]map[string]any{
		{"id": "a", "filter_decision": "kept"},
	})

	stage := New(&mockProvider{response: string(resp)}, 20, 1, 0, 0.1)
	stage.Run(context.Background(), recs)

	for _, rec := range recs {
		if rec.FilterDecision == news.FilterUndecided {
			t.Errorf("record %s left undecided", rec.ID)
		}
		if rec.FilterReason == "" {
			t.Errorf("record %s has empty filter_reason", rec.ID)
		}
	}
}

func TestFilterFallbackKeepsBatch(t *testing.T) {
	recs := []*news.Record{record("a", "A"), record("b", "B")}

	stage := New(&mockProvider{response: "not json"}, 20, 2, 0, 0.1)
	result := stage.Run(context.Background(), recs)

	if result.FailedBatches != 1 {
		t.Errorf("expected 1 failed batch, got %d", result.FailedBatches)
	}
	if result.Kept != 2 {
		t.Errorf("expected all records kept on fallback, got %d", result.Kept)
	}
	for _, rec := range recs {
		if rec.FilterDecision != news.FilterKept {
			t.Errorf("record %s: expected kept, got %q", rec.ID, rec.FilterDecision)
		}
	}
}

func TestFilterPreFilterShortBody(t *testing.T) {
	short := &news.Record{ID: "s", Title: "Thin", Body: "too short"}
	recs := []*news.Record{short}

	provider := &mockProvider{response: "[]"}
	stage := New(provider, 20, 1, 0, 0.1)
	result := stage.Run(context.Background(), recs)

	if result.Dropped != 1 {
		t.Errorf("expected short record dropped, got %d dropped", result.Dropped)
	}
	if len(provider.prompts) != 0 {
		t.Errorf("expected no oracle call for pre-filtered records, got %d", len(provider.prompts))
	}
	if short.FilterReason == "" {
		t.Error("expected a reason on pre-filtered record")
	}
}

func TestFilterRejectsUnknownDecision(t *testing.T) {
	recs := []*news.Record{record("a", "A")}
	resp, _ := json.Marshal([]map[string]any{
		{"id": "a", "filter_decision": "maybe", "filter_reason": "?"},
	})

	stage := New(&mockProvider{response: string(resp)}, 20, 1, 0, 0.1)
	stage.Run(context.Background(), recs)

	// Invalid entry discarded, record defaulted to kept.
	if recs[0].FilterDecision != news.FilterKept {
		t.Errorf("expected default kept, got %q", recs[0].FilterDecision)
	}
	if recs[0].FilterReason != "no decision returned; kept by default" {
		t.Errorf("unexpected reason: %q", recs[0].FilterReason)
	}
}
