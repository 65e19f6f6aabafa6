package sentiment

import (
	"math"

	"github.com/stockpulse/stockpulse/internal/classify"
	"github.com/stockpulse/stockpulse/internal/database"
)

// Trading signals derived from the normalized score.
const (
	SignalStrongBuy  = "STRONG BUY"
	SignalBuy        = "BUY"
	SignalHold       = "HOLD"
	SignalSell       = "SELL"
	SignalStrongSell = "STRONG SELL"
)

// scoreFor maps a sentiment label to its numeric score. The bool is
// false for unknown labels.
func scoreFor(label string) (float64, bool) {
	switch label {
	case classify.LabelHighlyNegative:
		return -1.0, true
	case classify.LabelNegative:
		return -0.5, true
	case classify.LabelNeutral:
		return 0.0, true
	case classify.LabelPositive:
		return 0.5, true
	case classify.LabelHighlyPositive:
		return 1.0, true
	default:
		return 0, false
	}
}

// SignalFor maps a normalized score to a trading signal.
func SignalFor(normalized float64) string {
	switch {
	case normalized >= 0.5:
		return SignalStrongBuy
	case normalized >= 0.2:
		return SignalBuy
	case normalized >= -0.2:
		return SignalHold
	case normalized >= -0.5:
		return SignalSell
	default:
		return SignalStrongSell
	}
}

// LabelFor maps a normalized score back to the nearest sentiment
// label, for display.
func LabelFor(normalized float64) string {
	switch {
	case normalized >= 0.5:
		return classify.LabelHighlyPositive
	case normalized >= 0.2:
		return classify.LabelPositive
	case normalized >= -0.2:
		return classify.LabelNeutral
	case normalized >= -0.5:
		return classify.LabelNegative
	default:
		return classify.LabelHighlyNegative
	}
}

// Aggregator recomputes per-ticker sentiment snapshots from analyzed
// news.
type Aggregator struct {
	db *database.DB
}

// New creates an aggregator.
func New(db *database.DB) *Aggregator {
	return &Aggregator{db: db}
}

// Recompute rebuilds the snapshot for one ticker from scratch and
// stores it, overwriting any previous snapshot. Safe to call after
// every analysis batch.
func (a *Aggregator) Recompute(ticker string) (*database.SentimentSnapshot, error) {
	items, err := a.db.GetAnalyzedWithSentiment(ticker)
	if err != nil {
		return nil, err
	}

	var sum float64
	var positive, negative, neutral int

	for _, item := range items {
		if item.SentimentLabel == nil {
			continue
		}
		score, ok := scoreFor(*item.SentimentLabel)
		if !ok {
			continue
		}
		sum += score
		switch {
		case score > 0:
			positive++
		case score < 0:
			negative++
		default:
			neutral++
		}
	}

	total := positive + negative + neutral
	var normalized, confidence float64
	if total > 0 {
		normalized = round4(sum / float64(total))
		confidence = round4(float64(maxBucket(positive, negative, neutral)) / float64(total))
	}

	pending, err := a.db.CountPendingNews(ticker)
	if err != nil {
		return nil, err
	}

	snapshot := &database.SentimentSnapshot{
		Ticker:          ticker,
		RawScoreSum:     round4(sum),
		NormalizedScore: normalized,
		SentimentLabel:  LabelFor(normalized),
		Signal:          SignalFor(normalized),
		Confidence:      confidence,
		PositiveCount:   positive,
		NegativeCount:   negative,
		NeutralCount:    neutral,
		TotalAnalyzed:   total,
		TotalPending:    pending,
	}
	if err := a.db.UpsertSentiment(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// maxBucket picks the largest of the three score-sign counts.
// Confidence is computed over the signs, not the five labels, so a
// Positive plus a Highly Positive item count as one agreeing bucket.
func maxBucket(positive, negative, neutral int) int {
	max := positive
	if negative > max {
		max = negative
	}
	if neutral > max {
		max = neutral
	}
	return max
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
