package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/stockpulse/stockpulse/internal/cooldown"
)

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIURL   = "https://oauth.reddit.com"

	// Tokens are refreshed this many seconds before they actually
	// expire.
	tokenSafetyMargin = 60
)

// Reddit searches configured subreddits for posts mentioning a ticker,
// using the application-only OAuth flow. Access tokens are cached
// until shortly before expiry.
type Reddit struct {
	clientID     string
	clientSecret string
	userAgent    string
	subreddits   []string
	minScore     int
	gate         *cooldown.Gate
	client       *http.Client

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	tokenURL string
	apiURL   string
}

// NewReddit reads credentials from the given environment variables.
func NewReddit(clientIDEnv, clientSecretEnv, userAgent string, subreddits []string, minScore int, gate *cooldown.Gate) *Reddit {
	return &Reddit{
		clientID:     os.Getenv(clientIDEnv),
		clientSecret: os.Getenv(clientSecretEnv),
		userAgent:    userAgent,
		subreddits:   subreddits,
		minScore:     minScore,
		gate:         gate,
		client:       &http.Client{Timeout: 30 * time.Second},
		tokenURL:     redditTokenURL,
		apiURL:       redditAPIURL,
	}
}

func (s *Reddit) Name() string { return "Reddit" }
func (s *Reddit) Type() Type   { return TypeReddit }

func (s *Reddit) IsAvailable() bool {
	return s.clientID != "" && s.clientSecret != "" && len(s.subreddits) > 0 &&
		s.gate.IsAvailable(string(TypeReddit))
}

// bearerToken returns a valid access token, requesting a new one only
// when the cached token is within the safety margin of expiry.
func (s *Reddit) bearerToken(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.token != "" && time.Now().Add(tokenSafetyMargin*time.Second).Before(s.tokenExpiry) {
		return s.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, "POST", s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &ProviderError{Service: s.Name(), Detail: "build token request", Err: err}
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &ProviderError{Service: s.Name(), Detail: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Service: s.Name(), Detail: fmt.Sprintf("token HTTP %d", resp.StatusCode)}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &ProviderError{Service: s.Name(), Detail: "decode token", Err: err}
	}
	if body.AccessToken == "" {
		return "", &ProviderError{Service: s.Name(), Detail: "empty access token"}
	}

	s.token = body.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return s.token, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				SelfText   string  `json:"selftext"`
				Permalink  string  `json:"permalink"`
				Subreddit  string  `json:"subreddit"`
				Author     string  `json:"author"`
				Score      int     `json:"score"`
				CreatedUTC float64 `json:"created_utc"`
				Stickied   bool    `json:"stickied"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (s *Reddit) Fetch(ctx context.Context, ticker string, from, to time.Time) ([]Item, error) {
	token, err := s.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":           {ticker},
		"restrict_sr": {"1"},
		"sort":        {"new"},
		"limit":       {"100"},
		"t":           {"week"},
		"raw_json":    {"1"},
	}
	endpoint := fmt.Sprintf("%s/r/%s/search?%s", s.apiURL, strings.Join(s.subreddits, "+"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, &ProviderError{Service: s.Name(), Detail: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Service: s.Name(), Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.gate.EnterCooldown(string(TypeReddit), "HTTP 429", cooldownWindow)
		return nil, &RateLimitedError{Service: s.Name(), RetryAfter: cooldownWindow}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Service: s.Name(), Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, &ProviderError{Service: s.Name(), Detail: "decode response", Err: err}
	}

	var items []Item
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.Score < s.minScore {
			continue
		}
		created := time.Unix(int64(post.CreatedUTC), 0).UTC()
		// Window is half-open: from inclusive, to exclusive.
		if created.Before(from) || !created.Before(to) {
			continue
		}

		items = append(items, Item{
			Ticker:          ticker,
			Title:           post.Title,
			Summary:         post.SelfText,
			URL:             "https://www.reddit.com" + post.Permalink,
			Source:          "r/" + post.Subreddit,
			SourceType:      TypeReddit,
			PublishedAt:     created.Format(time.RFC3339),
			EngagementScore: post.Score,
			Author:          post.Author,
		})
	}
	return items, nil
}
