package database

// News item lifecycle states.
const (
	StatusPending  = "pending"
	StatusAnalyzed = "analyzed"
)

// Ticker is a watched stock symbol.
type Ticker struct {
	ID        int64
	Symbol    string
	Name      *string
	IsActive  bool
	CreatedAt *string
}

// NewsItem is a stored news record for a ticker. PublishedAt keeps the
// source-native timestamp string.
type NewsItem struct {
	ID              int64
	Ticker          string
	Title           string
	Summary         *string
	URL             *string
	Source          *string
	SourceType      string
	PublishedAt     *string
	RelevanceScore  *float64
	EngagementScore *int
	Author          *string
	Content         *string
	ContentFetched  bool
	Status          string
	SentimentLabel  *string
	Justification   *string
	FetchedAt       *string
	AnalyzedAt      *string
}

// SentimentSnapshot is the aggregated sentiment for one ticker. It is
// always written in full, never patched.
type SentimentSnapshot struct {
	Ticker          string  `json:"ticker"`
	RawScoreSum     float64 `json:"raw_score_sum"`
	NormalizedScore float64 `json:"normalized_score"`
	SentimentLabel  string  `json:"sentiment_label"`
	Signal          string  `json:"signal"`
	Confidence      float64 `json:"confidence"`
	PositiveCount   int     `json:"positive_count"`
	NegativeCount   int     `json:"negative_count"`
	NeutralCount    int     `json:"neutral_count"`
	TotalAnalyzed   int     `json:"total_analyzed"`
	TotalPending    int     `json:"total_pending"`
	UpdatedAt       *string `json:"updated_at,omitempty"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	Tickers       int
	ActiveTickers int
	TotalNews     int
	PendingNews   int
	AnalyzedNews  int
	Snapshots     int
}
