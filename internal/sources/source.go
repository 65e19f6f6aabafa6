package sources

import (
	"context"
	"time"
)

// cooldownWindow is how long a source stays disabled after hitting a
// provider rate limit, in seconds.
const cooldownWindow = 60

// Type identifies a kind of news source.
type Type string

const (
	TypeAlphaVantage Type = "alphavantage"
	TypeReddit       Type = "reddit"
	TypeRSS          Type = "rss"
)

// PriorityRank orders source types for duplicate resolution. Higher
// wins.
func (t Type) PriorityRank() int {
	switch t {
	case TypeAlphaVantage:
		return 3
	case TypeRSS:
		return 2
	case TypeReddit:
		return 1
	default:
		return 0
	}
}

// Item is one news item as returned by a source, before persistence.
type Item struct {
	Ticker          string
	Title           string
	Summary         string
	URL             string
	Source          string
	SourceType      Type
	PublishedAt     string
	RelevanceScore  float64
	EngagementScore int
	Author          string
}

// Source fetches news items for a ticker within a time window.
type Source interface {
	Name() string
	Type() Type
	// IsAvailable reports whether the source can be queried right now
	// (configured and not cooling down).
	IsAvailable() bool
	Fetch(ctx context.Context, ticker string, from, to time.Time) ([]Item, error)
}
