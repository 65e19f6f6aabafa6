package sentiment

import (
	"path/filepath"
	"testing"

	"github.com/stockpulse/stockpulse/internal/classify"
	"github.com/stockpulse/stockpulse/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func addAnalyzed(t *testing.T, db *database.DB, ticker, title, url, label string) {
	t.Helper()
	item := &database.NewsItem{
		Ticker: ticker, Title: title, SourceType: "rss",
		Status: database.StatusPending,
	}
	if url != "" {
		item.URL = &url
	}
	id, err := db.InsertNews(item)
	if err != nil || id == 0 {
		t.Fatalf("insert failed: id=%d err=%v", id, err)
	}
	if err := db.UpdateNewsAnalysis(id, label, "test"); err != nil {
		t.Fatalf("analysis update failed: %v", err)
	}
}

func TestRecompute(t *testing.T) {
	db := openTestDB(t)
	addAnalyzed(t, db, "AAPL", "a", "https://a.com/1", classify.LabelPositive)
	addAnalyzed(t, db, "AAPL", "b", "https://a.com/2", classify.LabelPositive)
	addAnalyzed(t, db, "AAPL", "c", "https://a.com/3", classify.LabelNegative)
	addAnalyzed(t, db, "AAPL", "d", "https://a.com/4", classify.LabelNeutral)

	snap, err := New(db).Recompute("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 0.5 + 0.5 - 0.5 + 0 = 0.5 over 4 items.
	if snap.RawScoreSum != 0.5 {
		t.Errorf("expected raw sum 0.5, got %v", snap.RawScoreSum)
	}
	if snap.NormalizedScore != 0.125 {
		t.Errorf("expected normalized 0.125, got %v", snap.NormalizedScore)
	}
	if snap.Signal != SignalHold {
		t.Errorf("expected HOLD, got %q", snap.Signal)
	}
	if snap.SentimentLabel != classify.LabelNeutral {
		t.Errorf("expected Neutral, got %q", snap.SentimentLabel)
	}
	if snap.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %v", snap.Confidence)
	}
	if snap.PositiveCount != 2 || snap.NegativeCount != 1 || snap.NeutralCount != 1 {
		t.Errorf("unexpected counts: +%d -%d =%d",
			snap.PositiveCount, snap.NegativeCount, snap.NeutralCount)
	}
	if snap.TotalAnalyzed != 4 {
		t.Errorf("expected 4 analyzed, got %d", snap.TotalAnalyzed)
	}

	stored, _ := db.GetSentiment("AAPL")
	if stored == nil || stored.Signal != SignalHold {
		t.Error("expected snapshot persisted")
	}
}

func TestRecomputeConfidenceSpansLabelStrengths(t *testing.T) {
	db := openTestDB(t)
	addAnalyzed(t, db, "AAPL", "a", "https://a.com/1", classify.LabelPositive)
	addAnalyzed(t, db, "AAPL", "b", "https://a.com/2", classify.LabelHighlyPositive)

	snap, err := New(db).Recompute("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both items agree on direction, so confidence is 2/2 even though
	// they carry different labels.
	if snap.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", snap.Confidence)
	}
	if snap.PositiveCount != 2 {
		t.Errorf("expected 2 positive, got %d", snap.PositiveCount)
	}
	if snap.NormalizedScore != 0.75 {
		t.Errorf("expected normalized 0.75, got %v", snap.NormalizedScore)
	}
	if snap.Signal != SignalStrongBuy {
		t.Errorf("expected STRONG BUY, got %q", snap.Signal)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	db := openTestDB(t)
	addAnalyzed(t, db, "AAPL", "a", "https://a.com/1", classify.LabelHighlyPositive)

	agg := New(db)
	first, err := agg.Recompute("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := agg.Recompute("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *first != *second {
		t.Errorf("expected identical snapshots, got %+v and %+v", first, second)
	}
	all, _ := db.AllSentiments()
	if len(all) != 1 {
		t.Errorf("expected 1 snapshot, got %d", len(all))
	}
}

func TestRecomputeNoAnalyzed(t *testing.T) {
	db := openTestDB(t)
	url := "https://a.com/1"
	db.InsertNews(&database.NewsItem{
		Ticker: "AAPL", Title: "pending only", URL: &url,
		SourceType: "rss", Status: database.StatusPending,
	})

	snap, err := New(db).Recompute("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.NormalizedScore != 0 || snap.Confidence != 0 {
		t.Errorf("expected zeros with no analyzed items, got %+v", snap)
	}
	if snap.Signal != SignalHold {
		t.Errorf("expected HOLD, got %q", snap.Signal)
	}
	if snap.TotalPending != 1 {
		t.Errorf("expected 1 pending, got %d", snap.TotalPending)
	}
}

func TestSignalThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{1.0, SignalStrongBuy},
		{0.5, SignalStrongBuy},
		{0.49, SignalBuy},
		{0.2, SignalBuy},
		{0.19, SignalHold},
		{-0.2, SignalHold},
		{-0.21, SignalSell},
		{-0.5, SignalSell},
		{-0.51, SignalStrongSell},
		{-1.0, SignalStrongSell},
	}
	for _, c := range cases {
		if got := SignalFor(c.score); got != c.want {
			t.Errorf("SignalFor(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestScoreFor(t *testing.T) {
	cases := map[string]float64{
		classify.LabelHighlyNegative: -1.0,
		classify.LabelNegative:       -0.5,
		classify.LabelNeutral:        0.0,
		classify.LabelPositive:       0.5,
		classify.LabelHighlyPositive: 1.0,
	}
	for label, want := range cases {
		got, ok := scoreFor(label)
		if !ok || got != want {
			t.Errorf("scoreFor(%q) = %v/%v, want %v", label, got, ok, want)
		}
	}
	if _, ok := scoreFor("Bullish"); ok {
		t.Error("expected unknown label rejected")
	}
}
