package sources

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const maxPerFeed = 50

// FeedConfig is a single RSS/Atom feed.
type FeedConfig struct {
	URL  string
	Name string
}

// RSS parses configured finance feeds and keeps only entries that
// mention the requested ticker.
type RSS struct {
	feeds  []FeedConfig
	parser *gofeed.Parser
}

// NewRSS creates a feed source over the given feeds.
func NewRSS(feeds []FeedConfig) *RSS {
	return &RSS{feeds: feeds, parser: gofeed.NewParser()}
}

func (s *RSS) Name() string { return "RSS feeds" }
func (s *RSS) Type() Type   { return TypeRSS }

func (s *RSS) IsAvailable() bool {
	return len(s.feeds) > 0
}

func (s *RSS) Fetch(ctx context.Context, ticker string, from, to time.Time) ([]Item, error) {
	var items []Item
	for _, fc := range s.feeds {
		entries, err := s.parseFeed(ctx, fc, ticker, from, to)
		if err != nil {
			log.Printf("failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		items = append(items, entries...)
	}
	return items, nil
}

func (s *RSS) parseFeed(ctx context.Context, fc FeedConfig, ticker string, from, to time.Time) ([]Item, error) {
	feed, err := s.parser.ParseURLWithContext(fc.URL, ctx)
	if err != nil {
		return nil, err
	}

	name := fc.Name
	if name == "" {
		name = feed.Title
	}

	var items []Item
	for _, entry := range feed.Items {
		if len(items) >= maxPerFeed {
			break
		}

		link := entry.Link
		if link == "" {
			link = entry.GUID
		}
		title := strings.TrimSpace(entry.Title)
		if link == "" || title == "" {
			continue
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		summary = stripHTML(summary)

		if !mentionsTicker(title, ticker) && !mentionsTicker(summary, ticker) {
			continue
		}

		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}
		var publishedAt string
		if published != nil {
			// Window is half-open: from inclusive, to exclusive.
			if published.Before(from) || !published.Before(to) {
				continue
			}
			publishedAt = published.UTC().Format(time.RFC3339)
		}

		var author string
		if entry.Author != nil {
			author = entry.Author.Name
		}

		items = append(items, Item{
			Ticker:      ticker,
			Title:       title,
			Summary:     summary,
			URL:         link,
			Source:      name,
			SourceType:  TypeRSS,
			PublishedAt: publishedAt,
			Author:      author,
		})
	}
	return items, nil
}

// mentionsTicker reports whether the text contains the ticker symbol
// as a standalone word or cashtag, case-insensitively.
func mentionsTicker(text, ticker string) bool {
	if text == "" || ticker == "" {
		return false
	}
	upper := strings.ToUpper(text)
	ticker = strings.ToUpper(ticker)

	words := strings.FieldsFunc(upper, func(r rune) bool {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '$' {
			return false
		}
		return true
	})
	for _, w := range words {
		if w == ticker || w == "$"+ticker {
			return true
		}
	}
	return false
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
