package enrich

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/stockpulse/stockpulse/internal/database"
)

// Result holds the outcome of a content enrichment run.
type Result struct {
	Fetched int
	Failed  int
}

// Summary renders the result for job tracking.
func (r *Result) Summary() map[string]any {
	return map[string]any{
		"fetched": r.Fetched,
		"failed":  r.Failed,
	}
}

// Enricher pulls full article text for thin news items via HTTP +
// readability extraction, so classification has more to work with.
type Enricher struct {
	db     *database.DB
	client *http.Client
}

// New creates an enricher.
func New(db *database.DB, timeout time.Duration) *Enricher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Enricher{
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

// EnrichPending fetches article text for up to limit items whose
// summaries are too thin to classify. A domain that returns an HTTP
// error is skipped for the rest of the run.
func (e *Enricher) EnrichPending(limit int) *Result {
	items, err := e.db.GetNewsNeedingContent(limit)
	if err != nil {
		log.Printf("Error getting items needing content: %v", err)
		return &Result{}
	}

	if len(items) == 0 {
		log.Println("No items need content enrichment")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, item := range items {
		itemURL := ""
		if item.URL != nil {
			itemURL = *item.URL
		}

		u, _ := url.Parse(itemURL)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			e.db.MarkNewsFetchAttempted(item.ID)
			result.Failed++
			continue
		}

		text, httpErr := e.fetchArticleText(itemURL)
		if httpErr != nil {
			e.db.MarkNewsFetchAttempted(item.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", itemURL, domain)
			continue
		}

		if text != "" {
			e.db.UpdateNewsContent(item.ID, &text)
			result.Fetched++
			log.Printf("Fetched content for: %s", item.Title)
		} else {
			e.db.MarkNewsFetchAttempted(item.ID)
			result.Failed++
			log.Printf("No extractable content from: %s", itemURL)
		}
	}

	log.Printf("Enrichment complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

func (e *Enricher) fetchArticleText(itemURL string) (string, error) {
	req, err := http.NewRequest("GET", itemURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "stockpulse/1.0 (ticker sentiment)")

	resp, err := e.client.Do(req)
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

	parsedURL, _ := url.Parse(itemURL)
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
