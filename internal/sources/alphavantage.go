package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/stockpulse/stockpulse/internal/cooldown"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantage queries the NEWS_SENTIMENT endpoint. Articles below the
// configured relevance floor for the requested ticker are discarded.
type AlphaVantage struct {
	apiKey       string
	minRelevance float64
	gate         *cooldown.Gate
	client       *http.Client

	baseURL string
}

// NewAlphaVantage reads the API key from the given environment
// variable.
func NewAlphaVantage(apiKeyEnv string, minRelevance float64, gate *cooldown.Gate) *AlphaVantage {
	return &AlphaVantage{
		apiKey:       os.Getenv(apiKeyEnv),
		minRelevance: minRelevance,
		gate:         gate,
		client:       &http.Client{Timeout: 30 * time.Second},
		baseURL:      alphaVantageBaseURL,
	}
}

func (s *AlphaVantage) Name() string { return "Alpha Vantage" }
func (s *AlphaVantage) Type() Type   { return TypeAlphaVantage }

func (s *AlphaVantage) IsAvailable() bool {
	return s.apiKey != "" && s.gate.IsAvailable(string(TypeAlphaVantage))
}

type avTickerScore struct {
	Ticker         string `json:"ticker"`
	RelevanceScore string `json:"relevance_score"`
}

type avArticle struct {
	Title         string          `json:"title"`
	URL           string          `json:"url"`
	TimePublished string          `json:"time_published"`
	Authors       []string        `json:"authors"`
	Summary       string          `json:"summary"`
	SourceName    string          `json:"source"`
	TickerScores  []avTickerScore `json:"ticker_sentiment"`
}

type avResponse struct {
	Note        string      `json:"Note"`
	Information string      `json:"Information"`
	Feed        []avArticle `json:"feed"`
}

func (s *AlphaVantage) Fetch(ctx context.Context, ticker string, from, to time.Time) ([]Item, error) {
	params := url.Values{
		"function":  {"NEWS_SENTIMENT"},
		"tickers":   {ticker},
		"time_from": {from.UTC().Format("20060102T1504")},
		"time_to":   {to.UTC().Format("20060102T1504")},
		"limit":     {"200"},
		"apikey":    {s.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Service: s.Name(), Detail: "build request", Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Service: s.Name(), Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.gate.EnterCooldown(string(TypeAlphaVantage), "HTTP 429", cooldownWindow)
		return nil, &RateLimitedError{Service: s.Name(), RetryAfter: cooldownWindow}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Service: s.Name(), Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var body avResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &ProviderError{Service: s.Name(), Detail: "decode response", Err: err}
	}

	// Alpha Vantage reports quota exhaustion as 200 with a Note or
	// Information field instead of a feed.
	if body.Note != "" || body.Information != "" {
		msg := body.Note
		if msg == "" {
			msg = body.Information
		}
		s.gate.EnterCooldown(string(TypeAlphaVantage), msg, cooldownWindow)
		return nil, &RateLimitedError{Service: s.Name(), RetryAfter: cooldownWindow}
	}

	var items []Item
	for _, article := range body.Feed {
		if article.URL == "" || article.Title == "" {
			continue
		}

		relevance, ok := relevanceFor(article.TickerScores, ticker)
		if !ok || relevance < s.minRelevance {
			continue
		}

		var author string
		if len(article.Authors) > 0 {
			author = article.Authors[0]
		}

		items = append(items, Item{
			Ticker:         ticker,
			Title:          article.Title,
			Summary:        article.Summary,
			URL:            article.URL,
			Source:         article.SourceName,
			SourceType:     TypeAlphaVantage,
			PublishedAt:    article.TimePublished,
			RelevanceScore: relevance,
			Author:         author,
		})
	}
	return items, nil
}

func relevanceFor(scores []avTickerScore, ticker string) (float64, bool) {
	for _, ts := range scores {
		if ts.Ticker != ticker {
			continue
		}
		v, err := strconv.ParseFloat(ts.RelevanceScore, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
