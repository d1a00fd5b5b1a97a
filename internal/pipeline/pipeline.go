package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"newscurator/internal/cluster"
	"newscurator/internal/collect"
	"newscurator/internal/config"
	"newscurator/internal/database"
	"newscurator/internal/dedup"
	"newscurator/internal/fetch"
	"newscurator/internal/filter"
	"newscurator/internal/llm"
	"newscurator/internal/news"
	"newscurator/internal/rank"
	"newscurator/internal/report"
	"newscurator/internal/snapshot"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID      string
	Steps      []StepResult
	ReportPath string
}

// Pipeline orchestrates the 7-step curation pipeline.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	o := cfg.Oracle
	provider := llm.CreateProvider(
		o.Provider,
		o.Model,
		o.OllamaURL,
		o.OpenAIModel,
		o.OpenAIBaseURL,
		o.APIKeyEnv,
	)

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		provider: provider,
	}
}

// Run executes the full pipeline: collect, fetch, then the judgment stages,
// ending with the assembled report stored in the database and on disk.
func (p *Pipeline) Run(ctx context.Context, daysBack int) *Result {
	cur := p.cfg.Curate
	if daysBack <= 0 {
		daysBack = cur.WindowDays
	}

	r := &Result{RunID: uuid.NewString()}
	log.Printf("Starting curation run %s", r.RunID)

	step := p.runCollect(daysBack)
	r.Steps = append(r.Steps, step)

	step = p.runFetch(daysBack)
	r.Steps = append(r.Steps, step)

	records, err := p.db.GetRecentRecords(daysBack, cur.MaxPerSource)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Ingest", Err: err})
		return r
	}
	if len(records) == 0 {
		r.Steps = append(r.Steps, StepResult{Name: "Ingest", Summary: "No records in window, nothing to curate"})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Ingest",
		Summary: fmt.Sprintf("%d records within the last %d days", len(records), daysBack),
	})

	// The judgment stages cannot run without a configured oracle.
	if p.provider == nil {
		r.Steps = append(r.Steps, StepResult{
			Name: "Curate",
			Err:  fmt.Errorf("no usable LLM provider configured"),
		})
		return r
	}

	snap := snapshot.New(filepath.Join(p.cfg.GetDataDir(), "snapshots"), r.RunID, cur.Snapshots)
	snap.Write("ingest", records)

	pause := cur.Pacing()

	step = p.runFilter(ctx, records, pause)
	r.Steps = append(r.Steps, step)
	snap.Write("filter", records)

	step = p.runCluster(ctx, records, pause)
	r.Steps = append(r.Steps, step)
	snap.Write("cluster", records)

	step = p.runDedup(ctx, records, pause)
	r.Steps = append(r.Steps, step)
	snap.Write("dedup", records)

	step = p.runRank(ctx, records, pause)
	r.Steps = append(r.Steps, step)
	snap.Write("rank", records)

	step = p.runAssemble(ctx, r, records)
	r.Steps = append(r.Steps, step)

	return r
}

// DryRun shows what a run would operate on without calling the oracle.
func (p *Pipeline) DryRun(daysBack int) *Result {
	cur := p.cfg.Curate
	if daysBack <= 0 {
		daysBack = cur.WindowDays
	}
	r := &Result{}

	records, _ := p.db.GetRecentRecords(daysBack, cur.MaxPerSource)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Ingest",
		Summary: fmt.Sprintf("[dry-run] %d records within the last %d days", len(records), daysBack),
	})

	needing, _ := p.db.GetRecordsNeedingBody(daysBack)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d records need content fetching", len(needing)),
	})

	if p.provider == nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Curate",
			Summary: "[dry-run] no usable LLM provider configured; run would abort here",
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Curate",
			Summary: fmt.Sprintf("[dry-run] would filter, cluster, dedup and rank %d records", len(records)),
		})
	}

	return r
}

func (p *Pipeline) runCollect(daysBack int) StepResult {
	log.Println("Step 1/7: Collecting records...")
	collector := collect.NewCollector(p.cfg, p.db, daysBack)
	result := collector.Collect()
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d new records (%d total, %d duplicates)", result.NewRecords, result.TotalFound, result.Duplicates),
	}
}

func (p *Pipeline) runFetch(daysBack int) StepResult {
	log.Println("Step 2/7: Fetching record content...")
	fetcher := fetch.NewContentFetcher(p.db, 15*time.Second)
	result := fetcher.FetchMissingBodies(daysBack)
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d records, %d failed", result.Fetched, result.Failed),
	}
}

func (p *Pipeline) runFilter(ctx context.Context, records []*news.Record, pause time.Duration) StepResult {
	log.Println("Step 3/7: Filtering records...")
	cur := p.cfg.Curate
	stage := filter.New(p.provider, cur.FilterBatchSize, cur.MaxRetries, pause, cur.Temperatures.Filter)
	result := stage.Run(ctx, records)
	return StepResult{
		Name:    "Filter",
		Summary: fmt.Sprintf("Kept %d of %d records (%d dropped, %d failed batches)", result.Kept, result.Input, result.Dropped, result.FailedBatches),
	}
}

func (p *Pipeline) runCluster(ctx context.Context, records []*news.Record, pause time.Duration) StepResult {
	log.Println("Step 4/7: Clustering records into events...")
	cur := p.cfg.Curate
	stage := cluster.New(p.provider, cur.ClusterBatchSize, cur.MaxRetries, pause, cur.Temperatures.Cluster)
	result := stage.Run(ctx, records)
	return StepResult{
		Name:    "Cluster",
		Summary: fmt.Sprintf("Assigned %d records to %d events (%d unclustered)", result.Clustered, result.Events, result.Unclustered),
	}
}

func (p *Pipeline) runDedup(ctx context.Context, records []*news.Record, pause time.Duration) StepResult {
	log.Println("Step 5/7: Deduplicating events...")
	cur := p.cfg.Curate
	stage := dedup.New(p.provider, cur.MaxRetries, pause, cur.Temperatures.Dedup)
	result := stage.Run(ctx, records)
	return StepResult{
		Name:    "Dedup",
		Summary: fmt.Sprintf("Kept %d representatives across %d events (%d removed)", result.Kept, result.Events, result.Removed),
	}
}

func (p *Pipeline) runRank(ctx context.Context, records []*news.Record, pause time.Duration) StepResult {
	log.Println("Step 6/7: Ranking records...")
	cur := p.cfg.Curate
	stage := rank.New(p.provider, cur.RankBatchSize, cur.MaxRetries, pause, cur.Temperatures.Rank)
	result := stage.Run(ctx, records)
	return StepResult{
		Name: "Rank",
		Summary: fmt.Sprintf("Scored %d records (S:%d A:%d B:%d C:%d)",
			result.Scored, result.Tiers[news.TierS], result.Tiers[news.TierA],
			result.Tiers[news.TierB], result.Tiers[news.TierC]),
	}
}

func (p *Pipeline) runAssemble(ctx context.Context, r *Result, records []*news.Record) StepResult {
	log.Println("Step 7/7: Assembling report...")
	cur := p.cfg.Curate

	template := ""
	if cur.ReportTemplate != "" {
		data, err := os.ReadFile(cur.ReportTemplate)
		if err != nil {
			log.Printf("Reading report template %s: %v (using built-in)", cur.ReportTemplate, err)
		} else {
			template = string(data)
		}
	}

	assembler := report.New(p.provider, template, cur.Temperatures.Report)
	rep, err := assembler.Assemble(ctx, records)
	if err != nil {
		return StepResult{Name: "Assemble", Err: err}
	}

	events := make(map[string]struct{})
	for _, rec := range records {
		if rec.Retained() && rec.EventID != "" {
			events[rec.EventID] = struct{}{}
		}
	}

	if _, err := p.db.InsertReport(r.RunID, rep.Body, rep.QualityPassed, rep.RecordCount, len(events)); err != nil {
		return StepResult{Name: "Assemble", Err: fmt.Errorf("storing report: %w", err)}
	}

	path, err := p.writeReportFile(r.RunID, rep.Body)
	if err != nil {
		log.Printf("Writing report file: %v", err)
	} else {
		r.ReportPath = path
	}

	quality := "passed"
	if !rep.QualityPassed {
		quality = "failed"
	}
	return StepResult{
		Name: "Assemble",
		Summary: fmt.Sprintf("Report assembled from %d records across %d events (quality check %s, %d attempts)",
			rep.RecordCount, len(events), quality, rep.Attempts),
	}
}

func (p *Pipeline) writeReportFile(runID, body string) (string, error) {
	dir := filepath.Join(p.cfg.GetDataDir(), "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.md", time.Now().Format("2006-01-02"), runID))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
