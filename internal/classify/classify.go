package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentiment labels, most negative to most positive.
const (
	LabelHighlyNegative = "Highly Negative"
	LabelNegative       = "Negative"
	LabelNeutral        = "Neutral"
	LabelPositive       = "Positive"
	LabelHighlyPositive = "Highly Positive"
)

// ErrUnavailable signals that no classification provider could be
// reached. Items hitting it stay pending for a later run.
var ErrUnavailable = errors.New("classification provider unavailable")

const sentimentPrompt = `You are a financial sentiment analyst. Classify the sentiment of this news item for the stock %s.

News item:
%s

Consider only the implications for %s shareholders. Earnings beats, upgrades, product wins are positive; misses, downgrades, lawsuits, recalls are negative. General market commentary with no clear direction is neutral.

Respond with ONLY this JSON:
{
    "sentiment": "Highly Negative" | "Negative" | "Neutral" | "Positive" | "Highly Positive",
    "justification": "One sentence explaining the classification"
}`

// Outcome is one classification result.
type Outcome struct {
	Label         string
	Justification string
}

// Classifier assigns sentiment labels to news text via an LLM
// provider.
type Classifier struct {
	provider  Provider
	maxTokens int
}

// New creates a classifier. A nil provider is allowed; Classify will
// then report ErrUnavailable.
func New(provider Provider, maxTokens int) *Classifier {
	return &Classifier{provider: provider, maxTokens: maxTokens}
}

// Classify labels one news item's sentiment toward the ticker.
func (c *Classifier) Classify(ctx context.Context, ticker, text string) (*Outcome, error) {
	if c.provider == nil {
		return nil, ErrUnavailable
	}

	if len(text) > 4000 {
		text = text[:4000] + "..."
	}
	prompt := fmt.Sprintf(sentimentPrompt, ticker, text, ticker)

	responseText, err := c.provider.Generate(ctx, prompt, c.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parsed := parseJSONResponse(responseText)
	if parsed == nil {
		// Unparseable answers default to neutral rather than
		// blocking the batch.
		return &Outcome{
			Label:         LabelNeutral,
			Justification: "LLM response could not be parsed",
		}, nil
	}

	label := normalizeLabel(getString(parsed, "sentiment", LabelNeutral))
	justification := getString(parsed, "justification", "")

	return &Outcome{Label: label, Justification: justification}, nil
}

// normalizeLabel maps free-form LLM output onto the known labels,
// falling back to Neutral.
func normalizeLabel(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "highly negative", "very negative", "strongly negative":
		return LabelHighlyNegative
	case "negative":
		return LabelNegative
	case "neutral":
		return LabelNeutral
	case "positive":
		return LabelPositive
	case "highly positive", "very positive", "strongly positive":
		return LabelHighlyPositive
	default:
		return LabelNeutral
	}
}
