package collect

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/stockpulse/stockpulse/internal/cooldown"
	"github.com/stockpulse/stockpulse/internal/dedup"
	"github.com/stockpulse/stockpulse/internal/sources"
)

// fetchBudget caps how long one ticker's fan-out may take. Sources
// that have not answered by then are abandoned.
const fetchBudget = 30 * time.Second

// SourceStatus describes one source for status reporting.
type SourceStatus struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	Available       bool   `json:"available"`
	CooldownSeconds int    `json:"cooldown_seconds,omitempty"`
	CooldownMessage string `json:"cooldown_message,omitempty"`
}

// Orchestrator fans a ticker fetch out across all sources
// concurrently, merges the answers and drops duplicates.
type Orchestrator struct {
	sources []sources.Source
	gate    *cooldown.Gate
	budget  time.Duration
}

// NewOrchestrator wires the orchestrator over a set of sources.
func NewOrchestrator(srcs []sources.Source, gate *cooldown.Gate) *Orchestrator {
	return &Orchestrator{sources: srcs, gate: gate, budget: fetchBudget}
}

// Sources returns the configured sources.
func (o *Orchestrator) Sources() []sources.Source {
	return o.sources
}

// AvailableSources describes every source's current availability.
func (o *Orchestrator) AvailableSources() []SourceStatus {
	statuses := make([]SourceStatus, 0, len(o.sources))
	for _, s := range o.sources {
		st := SourceStatus{
			Name:      s.Name(),
			Type:      string(s.Type()),
			Available: s.IsAvailable(),
		}
		if !st.Available {
			st.CooldownSeconds = o.gate.Remaining(string(s.Type()))
			st.CooldownMessage = o.gate.Reason(string(s.Type()))
		}
		statuses = append(statuses, st)
	}
	return statuses
}

type fetchResult struct {
	source string
	items  []sources.Item
}

// FetchAll queries all eligible sources for one ticker and returns the
// deduplicated items, newest first. A non-empty filter restricts the
// run to the named source types. Source failures are logged and
// otherwise treated as empty results; a source that outlives the
// budget is abandoned.
func (o *Orchestrator) FetchAll(ctx context.Context, ticker string, from, to time.Time, filter []string) []sources.Item {
	var active []sources.Source
	for _, s := range o.sources {
		if excluded(s, filter) {
			continue
		}
		if !s.IsAvailable() {
			log.Printf("skipping %s for %s: unavailable", s.Name(), ticker)
			continue
		}
		active = append(active, s)
	}
	if len(active) == 0 {
		return nil
	}

	// Buffered so abandoned goroutines can still send and exit.
	results := make(chan fetchResult, len(active))
	for _, s := range active {
		go func(s sources.Source) {
			items, err := s.Fetch(ctx, ticker, from, to)
			if err != nil {
				var rateLimited *sources.RateLimitedError
				if errors.As(err, &rateLimited) {
					log.Printf("%s rate limited for %s, cooling down %ds",
						rateLimited.Service, ticker, rateLimited.RetryAfter)
				} else {
					log.Printf("%s fetch failed for %s: %v", s.Name(), ticker, err)
				}
				items = nil
			}
			results <- fetchResult{source: s.Name(), items: items}
		}(s)
	}

	timer := time.NewTimer(o.budget)
	defer timer.Stop()

	var collected []sources.Item
	received := 0
collecting:
	for received < len(active) {
		select {
		case r := <-results:
			received++
			collected = append(collected, r.items...)
		case <-timer.C:
			log.Printf("fetch budget exhausted for %s, abandoning %d slow source(s)",
				ticker, len(active)-received)
			break collecting
		case <-ctx.Done():
			break collecting
		}
	}

	return dedup.SortByRecency(dedup.Merge(collected))
}

func excluded(s sources.Source, filter []string) bool {
	if len(filter) == 0 {
		return false
	}
	for _, f := range filter {
		if f == string(s.Type()) {
			return false
		}
	}
	return true
}
