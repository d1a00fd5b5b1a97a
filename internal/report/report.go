package report

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"time"

	"newscurator/internal/llm"
	"newscurator/internal/news"
)

//go:embed template.md
var DefaultTemplate string

// Report assembly is best-effort: after maxAttempts the last output is
// returned with QualityPassed=false rather than failing the run.
const (
	maxAttempts   = 3
	minBodyLength = 500
)

const assemblePrompt = `You are a professional analyst of frontier AI technology. Using the curated news records below, write the full report document.

Current date: %s
Date range covered by the records (use it in the report header): %s to %s

Template and requirements:
%s

Curated news records, grouped by tier (S is highest):
%s

Instructions:
1. Follow the template exactly; top-level and second-level headings must match it.
2. Records are pre-ranked: give S and A tier items the most depth.
3. Analysis must be grounded in the provided records; do not invent facts or sources.
4. When a record lists citations, link titles to the cited primary source, not the aggregator.
5. Output must be Markdown, and nothing but the report itself.`

// Assembler renders ranked records into the final document with a bounded
// self-check loop.
type Assembler struct {
	provider    llm.Provider
	template    string
	temperature float64
}

// Result is the assembled document plus quality metadata.
type Result struct {
	Body          string
	QualityPassed bool
	Attempts      int
	RecordCount   int
}

// New creates an assembler. An empty template selects the embedded default.
func New(provider llm.Provider, template string, temperature float64) *Assembler {
	if template == "" {
		template = DefaultTemplate
	}
	return &Assembler{provider: provider, template: template, temperature: temperature}
}

// Assemble renders the scored records into a document. The self-check loop
// regenerates at most maxAttempts times, feeding the prior output and what
// was missing back into the prompt; if every attempt fails the check, the
// last output is returned flagged as not having passed.
func (a *Assembler) Assemble(ctx context.Context, records []*news.Record) (*Result, error) {
	var scored []*news.Record
	for _, rec := range records {
		if rec.Retained() && rec.Tier != "" {
			scored = append(scored, rec)
		}
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("no scored records to report on")
	}

	start, end := dateRange(scored)
	prompt := fmt.Sprintf(assemblePrompt,
		time.Now().Format("2006-01-02"), start, end,
		a.template, formatByTier(scored))

	required := sectionHeadings(a.template)

	var body string
	r := &Result{RecordCount: len(scored)}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		r.Attempts = attempt
		log.Printf("Assembling report (attempt %d/%d)...", attempt, maxAttempts)

		out, err := a.provider.Generate(ctx, prompt, a.temperature)
		if err != nil {
			log.Printf("Report generation failed: %v", err)
			continue
		}
		body = strings.TrimSpace(out)

		missing := check(body, required)
		if missing == "" {
			r.Body = body
			r.QualityPassed = true
			return r, nil
		}

		log.Printf("Report self-check failed: %s", missing)
		prompt += fmt.Sprintf(
			"\n\nPrevious attempt:\n%s\n\nThe previous attempt was rejected: %s. Regenerate the full report and fix this.",
			body, missing)
	}

	if body == "" {
		return nil, fmt.Errorf("report generation produced no output after %d attempts", maxAttempts)
	}
	log.Printf("Returning report despite failed quality check")
	r.Body = body
	return r, nil
}

// sectionHeadings extracts the heading lines of the template. The template
// itself stays opaque; only heading presence is checked.
func sectionHeadings(template string) []string {
	var headings []string
	for _, line := range strings.Split(template, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			h := strings.TrimSpace(strings.TrimLeft(line, "#"))
			if h != "" {
				headings = append(headings, h)
			}
		}
	}
	return headings
}

// check validates the generated body; returns "" if it passes, otherwise a
// description of what is missing.
func check(body string, required []string) string {
	var missing []string
	for _, h := range required {
		if !strings.Contains(body, h) {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return "missing required sections: " + strings.Join(missing, ", ")
	}
	if len(body) < minBodyLength {
		return fmt.Sprintf("report too short (%d chars, need %d)", len(body), minBodyLength)
	}
	return ""
}

// formatByTier renders compact blocks of the scored records, grouped S to C.
func formatByTier(records []*news.Record) string {
	byTier := make(map[news.Tier][]*news.Record)
	for _, rec := range records {
		byTier[rec.Tier] = append(byTier[rec.Tier], rec)
	}

	var b strings.Builder
	for _, tier := range []news.Tier{news.TierS, news.TierA, news.TierB, news.TierC} {
		items := byTier[tier]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## Tier %s (%d records)\n\n", tier, len(items))
		for i, rec := range items {
			fmt.Fprintf(&b, "### [%d] %s\n", i+1, rec.Title)
			fmt.Fprintf(&b, "- Source: %s\n", rec.Source)
			fmt.Fprintf(&b, "- Link: %s\n", rec.Link)
			fmt.Fprintf(&b, "- Published: %s\n", rec.PublishedAt.Format("2006-01-02 15:04"))
			fmt.Fprintf(&b, "- Score: %.2f (tech impact %d, industry scope %d, hype %d; %d related reports)\n",
				rec.FinalScore, rec.TechImpact, rec.IndustryScope, rec.HypeScore, rec.EventSize)
			if rec.Summary != "" {
				fmt.Fprintf(&b, "- Summary: %s\n", rec.Summary)
			}
			if len(rec.Citations) > 0 {
				b.WriteString("- Citations:\n")
				for _, c := range rec.Citations {
					fmt.Fprintf(&b, "  - [%s](%s)", c.Title, c.URL)
					if c.Type != "" {
						fmt.Fprintf(&b, " (%s)", c.Type)
					}
					b.WriteString("\n")
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func dateRange(records []*news.Record) (string, string) {
	var min, max time.Time
	for _, rec := range records {
		if rec.PublishedAt.IsZero() {
			continue
		}
		if min.IsZero() || rec.PublishedAt.Before(min) {
			min = rec.PublishedAt
		}
		if max.IsZero() || rec.PublishedAt.After(max) {
			max = rec.PublishedAt
		}
	}
	if min.IsZero() {
		today := time.Now().Format("2006-01-02")
		return today, today
	}
	return min.Format("2006-01-02"), max.Format("2006-01-02")
}
