package collect

import (
	"context"
	"testing"
	"time"

	"github.com/stockpulse/stockpulse/internal/cooldown"
	"github.com/stockpulse/stockpulse/internal/sources"
)

type fakeSource struct {
	name      string
	srcType   sources.Type
	available bool
	items     []sources.Item
	err       error
	delay     time.Duration
	calls     int
}

func (f *fakeSource) Name() string       { return f.name }
func (f *fakeSource) Type() sources.Type { return f.srcType }
func (f *fakeSource) IsAvailable() bool  { return f.available }

func (f *fakeSource) Fetch(ctx context.Context, ticker string, from, to time.Time) ([]sources.Item, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

func fakeItem(title, url string, st sources.Type) sources.Item {
	return sources.Item{
		Ticker:      "AAPL",
		Title:       title,
		URL:         url,
		SourceType:  st,
		PublishedAt: "2026-03-01T10:00:00Z",
	}
}

func window() (time.Time, time.Time) {
	to := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return to.Add(-24 * time.Hour), to
}

func TestFetchAllMergesSources(t *testing.T) {
	av := &fakeSource{name: "Alpha Vantage", srcType: sources.TypeAlphaVantage, available: true,
		items: []sources.Item{fakeItem("Apple earnings beat", "https://a.com/1", sources.TypeAlphaVantage)}}
	rss := &fakeSource{name: "RSS", srcType: sources.TypeRSS, available: true,
		items: []sources.Item{fakeItem("Apple supplier news", "https://b.com/2", sources.TypeRSS)}}

	o := NewOrchestrator([]sources.Source{av, rss}, cooldown.New())
	from, to := window()
	items := o.FetchAll(context.Background(), "AAPL", from, to, nil)

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestFetchAllDeduplicatesAcrossSources(t *testing.T) {
	av := &fakeSource{name: "Alpha Vantage", srcType: sources.TypeAlphaVantage, available: true,
		items: []sources.Item{fakeItem("Apple earnings beat", "https://a.com/1", sources.TypeAlphaVantage)}}
	reddit := &fakeSource{name: "Reddit", srcType: sources.TypeReddit, available: true,
		items: []sources.Item{fakeItem("Apple discussion", "https://a.com/1", sources.TypeReddit)}}

	o := NewOrchestrator([]sources.Source{av, reddit}, cooldown.New())
	from, to := window()
	items := o.FetchAll(context.Background(), "AAPL", from, to, nil)

	if len(items) != 1 {
		t.Fatalf("expected shared URL deduplicated, got %d items", len(items))
	}
	if items[0].SourceType != sources.TypeAlphaVantage {
		t.Errorf("expected higher-priority source kept, got %s", items[0].SourceType)
	}
}

func TestFetchAllSkipsUnavailable(t *testing.T) {
	down := &fakeSource{name: "Reddit", srcType: sources.TypeReddit, available: false,
		items: []sources.Item{fakeItem("should not appear", "https://r.com/1", sources.TypeReddit)}}
	up := &fakeSource{name: "RSS", srcType: sources.TypeRSS, available: true,
		items: []sources.Item{fakeItem("feed item", "https://f.com/1", sources.TypeRSS)}}

	o := NewOrchestrator([]sources.Source{down, up}, cooldown.New())
	from, to := window()
	items := o.FetchAll(context.Background(), "AAPL", from, to, nil)

	if down.calls != 0 {
		t.Error("unavailable source must not be queried")
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestFetchAllFilter(t *testing.T) {
	av := &fakeSource{name: "Alpha Vantage", srcType: sources.TypeAlphaVantage, available: true,
		items: []sources.Item{fakeItem("av item", "https://a.com/1", sources.TypeAlphaVantage)}}
	rss := &fakeSource{name: "RSS", srcType: sources.TypeRSS, available: true,
		items: []sources.Item{fakeItem("rss item", "https://b.com/1", sources.TypeRSS)}}

	o := NewOrchestrator([]sources.Source{av, rss}, cooldown.New())
	from, to := window()
	items := o.FetchAll(context.Background(), "AAPL", from, to, []string{"rss"})

	if av.calls != 0 {
		t.Error("filtered-out source must not be queried")
	}
	if len(items) != 1 || items[0].SourceType != sources.TypeRSS {
		t.Errorf("expected only rss items, got %v", items)
	}
}

func TestFetchAllSourceErrorTreatedAsEmpty(t *testing.T) {
	gate := cooldown.New()
	failing := &fakeSource{name: "Alpha Vantage", srcType: sources.TypeAlphaVantage, available: true,
		err: &sources.RateLimitedError{Service: "Alpha Vantage", RetryAfter: 60}}
	ok := &fakeSource{name: "RSS", srcType: sources.TypeRSS, available: true,
		items: []sources.Item{fakeItem("survivor", "https://b.com/1", sources.TypeRSS)}}

	o := NewOrchestrator([]sources.Source{failing, ok}, gate)
	from, to := window()
	items := o.FetchAll(context.Background(), "AAPL", from, to, nil)

	if len(items) != 1 {
		t.Fatalf("expected 1 item despite source error, got %d", len(items))
	}
	if items[0].Title != "survivor" {
		t.Errorf("unexpected item %q", items[0].Title)
	}
}

func TestFetchAllAbandonsSlowSource(t *testing.T) {
	slow := &fakeSource{name: "Reddit", srcType: sources.TypeReddit, available: true,
		delay: 2 * time.Second,
		items: []sources.Item{fakeItem("late", "https://r.com/1", sources.TypeReddit)}}
	fast := &fakeSource{name: "RSS", srcType: sources.TypeRSS, available: true,
		items: []sources.Item{fakeItem("prompt", "https://f.com/1", sources.TypeRSS)}}

	o := NewOrchestrator([]sources.Source{slow, fast}, cooldown.New())
	o.budget = 100 * time.Millisecond

	from, to := window()
	start := time.Now()
	items := o.FetchAll(context.Background(), "AAPL", from, to, nil)
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("expected return near budget, took %v", elapsed)
	}
	if len(items) != 1 || items[0].Title != "prompt" {
		t.Errorf("expected only the fast source's item, got %v", items)
	}
}

func TestAvailableSources(t *testing.T) {
	gate := cooldown.New()
	gate.EnterCooldown(string(sources.TypeAlphaVantage), "quota", 60)

	cooling := &fakeSource{name: "Alpha Vantage", srcType: sources.TypeAlphaVantage, available: false}
	up := &fakeSource{name: "RSS", srcType: sources.TypeRSS, available: true}

	o := NewOrchestrator([]sources.Source{cooling, up}, gate)
	statuses := o.AvailableSources()

	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Error("expected cooling source unavailable")
	}
	if statuses[0].CooldownSeconds <= 0 || statuses[0].CooldownMessage != "quota" {
		t.Errorf("expected cooldown details, got %+v", statuses[0])
	}
	if !statuses[1].Available {
		t.Error("expected rss available")
	}
}
