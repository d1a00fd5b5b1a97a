package collect

import (
	"log"

	"newscurator/internal/config"
	"newscurator/internal/database"
	"newscurator/internal/news"
)

// Result holds the results of a collection run.
type Result struct {
	TotalFound int
	NewRecords int
	Duplicates int
	Sources    map[string]int
}

// Collector gathers news records from RSS feeds and NewsAPI.
type Collector struct {
	db         *database.DB
	feedParser *FeedParser
	newsClient *NewsAPIClient
	newsQuery  string
	daysBack   int
}

// NewCollector creates a collector for the configured sources.
func NewCollector(cfg *config.Config, db *database.DB, daysBack int) *Collector {
	c := &Collector{
		db:       db,
		daysBack: daysBack,
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
		}
		c.feedParser = NewFeedParser(feeds)
	}

	apiCfg := cfg.Sources.APIs.NewsAPI
	if apiCfg.Enabled {
		c.newsClient = NewNewsAPIClient(apiCfg.APIKeyEnv)
		c.newsQuery = apiCfg.Query
		if c.newsQuery == "" {
			c.newsQuery = "artificial intelligence"
		}
	}

	return c
}

// Collect gathers records from all configured sources and stores them.
func (c *Collector) Collect() *Result {
	r := &Result{Sources: make(map[string]int)}

	if c.feedParser != nil {
		log.Println("Collecting from RSS feeds...")
		for _, rec := range c.feedParser.ParseAll(c.daysBack) {
			c.store(r, rec)
		}
	}

	if c.newsClient != nil && c.newsClient.IsConfigured() {
		log.Println("Collecting from NewsAPI...")
		for _, rec := range c.newsClient.Search(c.newsQuery, c.daysBack, 100) {
			c.store(r, rec)
		}
	}

	log.Printf("Collection complete: %d found, %d new, %d duplicates", r.TotalFound, r.NewRecords, r.Duplicates)
	return r
}

func (c *Collector) store(r *Result, rec *news.Record) {
	r.TotalFound++
	inserted, err := c.db.InsertRecord(rec)
	if err != nil {
		log.Printf("Storing %s: %v", rec.Link, err)
		return
	}
	if inserted {
		r.NewRecords++
		r.Sources[rec.Source]++
	} else {
		r.Duplicates++
	}
}
