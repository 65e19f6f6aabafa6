package dedup

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/stockpulse/stockpulse/internal/sources"
)

// similarityThreshold is the minimum Jaccard similarity between two
// title token sets for them to be treated as the same story.
const similarityThreshold = 0.85

// timeLayouts are the accepted published-at formats, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"20060102T150405",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type story struct {
	tokens map[string]struct{}
	norm   string
}

// Merge collapses items covering the same story in a single pass.
// Items match when they share a URL, have identical normalized titles,
// or their title similarity reaches the threshold. Of two matching
// items the one from the higher-priority source survives; ties keep
// the first seen.
func Merge(items []sources.Item) []sources.Item {
	var kept []sources.Item
	var stories []story
	byURL := make(map[string]int)

	for _, it := range items {
		norm := normalizeTitle(it.Title)
		tokens := tokenSet(norm)

		idx := -1
		if it.URL != "" {
			if i, ok := byURL[it.URL]; ok {
				idx = i
			}
		}
		if idx < 0 {
			for i := range kept {
				if sameStory(stories[i], norm, tokens) {
					idx = i
					break
				}
			}
		}

		if idx < 0 {
			kept = append(kept, it)
			stories = append(stories, story{tokens: tokens, norm: norm})
			if it.URL != "" {
				byURL[it.URL] = len(kept) - 1
			}
			continue
		}

		if priority(it) > priority(kept[idx]) {
			if old := kept[idx].URL; old != "" {
				delete(byURL, old)
			}
			kept[idx] = it
			stories[idx] = story{tokens: tokens, norm: norm}
			if it.URL != "" {
				byURL[it.URL] = idx
			}
		}
	}
	return kept
}

func sameStory(s story, norm string, tokens map[string]struct{}) bool {
	if s.norm != "" && s.norm == norm {
		return true
	}
	return jaccard(s.tokens, tokens) >= similarityThreshold
}

// priority ranks an item for duplicate resolution: the source type's
// rank plus the whole part of the relevance score.
func priority(it sources.Item) int {
	return it.SourceType.PriorityRank() + int(math.Floor(it.RelevanceScore))
}

// normalizeTitle lowercases and collapses whitespace. Punctuation is
// kept, so tokens like "5%" and "5%!" stay distinct for the
// similarity comparison.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// SortByRecency returns a copy ordered newest first. Items whose
// timestamp cannot be parsed sort last, keeping their relative order.
func SortByRecency(items []sources.Item) []sources.Item {
	out := make([]sources.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		ti, oki := ParseTime(out[i].PublishedAt)
		tj, okj := ParseTime(out[j].PublishedAt)
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return ti.After(tj)
	})
	return out
}

// ParseTime tries each accepted timestamp layout in order.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
