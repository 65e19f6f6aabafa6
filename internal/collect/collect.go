package collect

import (
	"context"
	"log"
	"time"

	"github.com/stockpulse/stockpulse/internal/database"
	"github.com/stockpulse/stockpulse/internal/sources"
)

// Result holds the outcome of a collection run.
type Result struct {
	TickersProcessed int
	TotalFound       int
	Saved            int
	Duplicates       int
	Errors           int
	Sources          map[string]int
}

// Summary renders the result for job tracking.
func (r *Result) Summary() map[string]any {
	return map[string]any{
		"tickers_processed": r.TickersProcessed,
		"total_found":       r.TotalFound,
		"saved":             r.Saved,
		"duplicates":        r.Duplicates,
		"errors":            r.Errors,
		"sources":           r.Sources,
	}
}

// Collector runs the fetch fan-out per ticker and persists what comes
// back.
type Collector struct {
	db   *database.DB
	orch *Orchestrator
}

// NewCollector wires a collector.
func NewCollector(db *database.DB, orch *Orchestrator) *Collector {
	return &Collector{db: db, orch: orch}
}

// Collect fetches news for each ticker in turn and stores it. Items
// whose URL is already in the database count as duplicates.
func (c *Collector) Collect(ctx context.Context, tickers []string, from, to time.Time, filter []string) *Result {
	r := &Result{Sources: make(map[string]int)}

	for _, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}
		log.Printf("Collecting news for %s...", ticker)
		items := c.orch.FetchAll(ctx, ticker, from, to, filter)
		r.TickersProcessed++
		r.TotalFound += len(items)

		for _, it := range items {
			id, err := c.db.InsertNews(newsRecord(ticker, it))
			if err != nil {
				log.Printf("failed to store %q: %v", it.Title, err)
				r.Errors++
				continue
			}
			if id > 0 {
				r.Saved++
				r.Sources[string(it.SourceType)]++
			} else {
				r.Duplicates++
			}
		}
	}

	log.Printf("Collection complete: %d tickers, %d found, %d saved, %d duplicates",
		r.TickersProcessed, r.TotalFound, r.Saved, r.Duplicates)
	return r
}

func newsRecord(ticker string, it sources.Item) *database.NewsItem {
	n := &database.NewsItem{
		Ticker:     ticker,
		Title:      it.Title,
		SourceType: string(it.SourceType),
		Status:     database.StatusPending,
	}
	if it.Summary != "" {
		n.Summary = &it.Summary
	}
	if it.URL != "" {
		n.URL = &it.URL
	}
	if it.Source != "" {
		n.Source = &it.Source
	}
	if it.PublishedAt != "" {
		n.PublishedAt = &it.PublishedAt
	}
	if it.RelevanceScore != 0 {
		n.RelevanceScore = &it.RelevanceScore
	}
	if it.EngagementScore != 0 {
		n.EngagementScore = &it.EngagementScore
	}
	if it.Author != "" {
		n.Author = &it.Author
	}
	return n
}
