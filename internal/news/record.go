package news

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// FilterDecision is the outcome of the filter stage for one record.
type FilterDecision string

const (
	FilterUndecided FilterDecision = ""
	FilterKept      FilterDecision = "kept"
	FilterDropped   FilterDecision = "dropped"
)

// DedupDecision is the outcome of the dedup stage for one record.
type DedupDecision string

const (
	DedupUndecided DedupDecision = ""
	DedupKept      DedupDecision = "kept"
	DedupRemoved   DedupDecision = "removed"
)

// Tier is the ordinal output class derived from FinalScore.
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Citation is an external link a record points at (paper, repo, official post).
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type,omitempty"`
}

// Record is one candidate news item flowing through the curation pipeline.
// The pipeline mutates records in place; each stage writes only its own
// fields and never touches fields owned by an earlier stage.
type Record struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body"`
	Link        string     `json:"link"`
	Source      string     `json:"source"`
	PublishedAt time.Time  `json:"published_at"`
	Citations   []Citation `json:"citations,omitempty"`

	// Filter stage
	FilterDecision FilterDecision `json:"filter_decision,omitempty"`
	FilterReason   string         `json:"filter_reason,omitempty"`

	// Cluster stage
	EventID   string `json:"event_id,omitempty"`
	EventSize int    `json:"event_size,omitempty"`

	// Dedup stage
	DedupDecision DedupDecision `json:"dedup_decision,omitempty"`
	DedupReason   string        `json:"dedup_reason,omitempty"`

	// Rank stage
	TechImpact    int     `json:"tech_impact,omitempty"`
	IndustryScope int     `json:"industry_scope,omitempty"`
	HypeScore     int     `json:"hype_score,omitempty"`
	FinalScore    float64 `json:"final_score,omitempty"`
	Tier          Tier    `json:"tier,omitempty"`
}

// Kept reports whether the record survived the filter stage.
func (r *Record) Kept() bool {
	return r.FilterDecision == FilterKept
}

// Clustered reports whether the record was assigned to an event.
// Records the cluster stage could not place are excluded from later stages.
func (r *Record) Clustered() bool {
	return r.Kept() && r.EventID != ""
}

// Retained reports whether the record survived dedup and advances to ranking.
func (r *Record) Retained() bool {
	return r.Clustered() && r.DedupDecision == DedupKept
}

// MakeID derives a stable record identifier from the origin tag and link,
// e.g. "openai_3f9ab2c1d0". Re-collecting the same link yields the same ID.
func MakeID(source, link string) string {
	sum := sha256.Sum256([]byte(link))
	return sourceSlug(source) + "_" + hex.EncodeToString(sum[:5])
}

func sourceSlug(source string) string {
	slug := strings.ToLower(strings.TrimSpace(source))
	var b strings.Builder
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "src"
	}
	return b.String()
}

// ByID builds an index of records keyed by ID.
func ByID(records []*Record) map[string]*Record {
	m := make(map[string]*Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}
