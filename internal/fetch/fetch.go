package fetch

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"newscurator/internal/database"
)

// Full text is capped so a single record cannot dominate a judgment prompt.
const maxBodyLength = 20000

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// ContentFetcher fills empty record bodies via HTTP + readability extraction.
type ContentFetcher struct {
	db     *database.DB
	client *http.Client
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(db *database.DB, timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		db: db,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingBodies fetches full text for recent records with empty bodies.
func (f *ContentFetcher) FetchMissingBodies(days int) *Result {
	records, err := f.db.GetRecordsNeedingBody(days)
	if err != nil {
		log.Printf("Error getting records needing fetch: %v", err)
		return &Result{}
	}

	if len(records) == 0 {
		log.Println("No records need content fetching")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, rec := range records {
		u, _ := url.Parse(rec.Link)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			result.Failed++
			continue
		}

		body, httpErr := f.fetchBody(rec.Link)
		if httpErr != nil {
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", rec.Link, domain)
			continue
		}

		if body != "" {
			if err := f.db.UpdateRecordBody(rec.ID, body); err != nil {
				log.Printf("Storing body for %s: %v", rec.ID, err)
				result.Failed++
				continue
			}
			result.Fetched++
			log.Printf("Fetched content for: %s", rec.Title)
		} else {
			result.Failed++
			log.Printf("No extractable content from: %s", rec.Link)
		}
	}

	log.Printf("Content fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

func (f *ContentFetcher) fetchBody(link string) (string, error) {
	req, err := http.NewRequest("GET", link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "newscurator/1.0 (news curation)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(link)
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) <= 100 {
		return "", nil
	}
	if len(text) > maxBodyLength {
		text = text[:maxBodyLength]
	}
	return text, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
