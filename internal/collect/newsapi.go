package collect

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"newscurator/internal/news"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIClient fetches records from NewsAPI.
type NewsAPIClient struct {
	apiKey string
	client *http.Client
}

// NewNewsAPIClient creates a new NewsAPI client.
func NewNewsAPIClient(apiKeyEnv string) *NewsAPIClient {
	return &NewsAPIClient{
		apiKey: os.Getenv(apiKeyEnv),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Search searches for records matching a query.
func (c *NewsAPIClient) Search(query string, daysBack, pageSize int) []*news.Record {
	if c.apiKey == "" {
		log.Println("NewsAPI not configured, skipping search")
		return nil
	}

	fromDate := time.Now().AddDate(0, 0, -daysBack).Format("2006-01-02")
	toDate := time.Now().Format("2006-01-02")

	if pageSize > 100 {
		pageSize = 100
	}

	params := url.Values{
		"q":        {query},
		"from":     {fromDate},
		"to":       {toDate},
		"language": {"en"},
		"pageSize": {fmt.Sprintf("%d", pageSize)},
		"sortBy":   {"relevancy"},
	}

	req, err := http.NewRequest("GET", newsAPIBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		log.Printf("NewsAPI request error: %v", err)
		return nil
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("NewsAPI error: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("NewsAPI HTTP error: %d", resp.StatusCode)
		return nil
	}

	var result struct {
		Status   string `json:"status"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Content     string `json:"content"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("NewsAPI decode error: %v", err)
		return nil
	}

	if result.Status != "ok" {
		log.Printf("NewsAPI status: %s", result.Status)
		return nil
	}

	var records []*news.Record
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var published time.Time
		if a.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
				published = t
			}
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		records = append(records, &news.Record{
			ID:          news.MakeID(source, a.URL),
			Title:       strings.TrimSpace(a.Title),
			Summary:     strings.TrimSpace(a.Description),
			Body:        strings.TrimSpace(a.Content),
			Link:        a.URL,
			Source:      source,
			PublishedAt: published,
		})
	}

	log.Printf("Fetched %d records from NewsAPI for query: %s", len(records), query)
	return records
}
