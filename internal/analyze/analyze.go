package analyze

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/stockpulse/stockpulse/internal/classify"
	"github.com/stockpulse/stockpulse/internal/database"
	"github.com/stockpulse/stockpulse/internal/sentiment"
)

// Result holds the outcome of an analysis run.
type Result struct {
	Processed      int
	Analyzed       int
	Skipped        int
	Errors         int
	TickersUpdated []string
}

// Summary renders the result for job tracking.
func (r *Result) Summary() map[string]any {
	return map[string]any{
		"processed":       r.Processed,
		"analyzed":        r.Analyzed,
		"skipped":         r.Skipped,
		"errors":          r.Errors,
		"tickers_updated": r.TickersUpdated,
	}
}

// Analyzer classifies pending news and refreshes sentiment snapshots
// for every ticker it touched.
type Analyzer struct {
	db         *database.DB
	classifier *classify.Classifier
	aggregator *sentiment.Aggregator
}

// New wires an analyzer.
func New(db *database.DB, classifier *classify.Classifier, aggregator *sentiment.Aggregator) *Analyzer {
	return &Analyzer{db: db, classifier: classifier, aggregator: aggregator}
}

// AnalyzePending classifies up to batchSize pending items. Items that
// hit an unavailable provider stay pending and count as skipped; other
// per-item failures are logged and counted without stopping the batch.
func (a *Analyzer) AnalyzePending(ctx context.Context, batchSize int) (*Result, error) {
	pending, err := a.db.GetPendingNews(batchSize)
	if err != nil {
		return nil, err
	}

	r := &Result{}
	if len(pending) == 0 {
		log.Println("No news pending analysis")
		return r, nil
	}

	touched := make(map[string]struct{})
	for _, item := range pending {
		if ctx.Err() != nil {
			break
		}
		r.Processed++

		outcome, err := a.classifier.Classify(ctx, item.Ticker, classificationText(item))
		if err != nil {
			if errors.Is(err, classify.ErrUnavailable) {
				// Leave the item pending for a later run.
				r.Skipped++
				continue
			}
			log.Printf("failed to classify item %d: %v", item.ID, err)
			r.Errors++
			continue
		}

		if err := a.db.UpdateNewsAnalysis(item.ID, outcome.Label, outcome.Justification); err != nil {
			log.Printf("failed to store analysis for item %d: %v", item.ID, err)
			r.Errors++
			continue
		}
		r.Analyzed++
		touched[item.Ticker] = struct{}{}
		log.Printf("Classified [%s]: %s", outcome.Label, item.Title)
	}

	for ticker := range touched {
		if _, err := a.aggregator.Recompute(ticker); err != nil {
			log.Printf("failed to recompute sentiment for %s: %v", ticker, err)
			r.Errors++
			continue
		}
		r.TickersUpdated = append(r.TickersUpdated, ticker)
	}
	sort.Strings(r.TickersUpdated)

	log.Printf("Analysis complete: %d processed (%d analyzed, %d skipped), %d errors, %d tickers updated",
		r.Processed, r.Analyzed, r.Skipped, r.Errors, len(r.TickersUpdated))
	return r, nil
}

// classificationText prefers extracted article content over the feed
// summary, falling back to the title.
func classificationText(item database.NewsItem) string {
	text := item.Title
	if item.Summary != nil && *item.Summary != "" {
		text += "\n\n" + *item.Summary
	}
	if item.Content != nil && *item.Content != "" {
		text = item.Title + "\n\n" + *item.Content
	}
	return text
}
