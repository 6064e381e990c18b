// Package normalizer turns a classifier's free-text reply into a structured analysis.
//
// The reply is treated as a hint, not a schema: lines labelled "Sentiment:" and
// "Themes:" are picked up when present and everything else falls back to
// Unknown sentiment with no themes.
package normalizer

import (
	"regexp"
	"strings"

	"NewsAtlas/internal/domain"
)

const (
	sentimentLabel = "Sentiment:"
	themesLabel    = "Themes:"
	unknownWord    = "Unknown"
)

var (
	markupReplacer = strings.NewReplacer("*", "", "`", "")

	// Underscores touching a word boundary are emphasis; snake_case survives.
	underscoreExpr = regexp.MustCompile(`(?m)(^|[^\p{L}\p{N}])_+|_+([^\p{L}\p{N}]|$)`)

	// Any "Word:" or "Two words:" opener, e.g. "Reasoning:" or "Key points:".
	labelExpr = regexp.MustCompile(`^\p{L}[\p{L} ]{0,30}:`)
)

// Normalize parses a raw reply. It never fails.
func Normalize(raw string) domain.Analysis {
	var (
		sentiment     string
		themes        string
		haveSentiment bool
		haveThemes    bool
		inSentiment   bool
	)

	for _, line := range strings.Split(StripMarkup(raw), "\n") {
		line = trimLineMarkers(line)

		switch {
		case strings.HasPrefix(line, sentimentLabel):
			sentiment = strings.TrimPrefix(line, sentimentLabel)
			haveSentiment = true
			inSentiment = true
		case strings.HasPrefix(line, themesLabel):
			themes = strings.TrimPrefix(line, themesLabel)
			haveThemes = true
			inSentiment = false
		case inSentiment && line != "" && !labelExpr.MatchString(line) && foldable(sentiment):
			// "Sentiment: Unknown\nNegative" reads as one value.
			sentiment += " " + line
		default:
			inSentiment = false
		}
	}

	result := domain.Analysis{Sentiment: domain.SentimentUnknown, Themes: []string{}}
	if haveSentiment {
		result.Sentiment = ClampSentiment(dropUnknown(sentiment))
	}
	if haveThemes {
		result.Themes = splitThemes(themes)
	}
	return result
}

// StripMarkup removes emphasis and code markers that models wrap labels in.
func StripMarkup(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = markupReplacer.Replace(s)
	return underscoreExpr.ReplaceAllString(s, "$1$2")
}

// trimLineMarkers drops heading, list and quote markers in front of a line.
func trimLineMarkers(line string) string {
	line = strings.TrimSpace(line)
	for {
		trimmed := strings.TrimSpace(strings.TrimLeft(line, "#->"))
		if trimmed == line {
			return line
		}
		line = trimmed
	}
}

// foldable reports whether the sentiment value still lacks a real answer, so
// the next line may complete it.
func foldable(sentiment string) bool {
	v := strings.TrimSpace(sentiment)
	return v == "" || v == unknownWord
}

// ClampSentiment maps free text onto the fixed vocabulary. The check order is
// positive, negative, neutral; the first substring hit wins.
func ClampSentiment(s string) domain.Sentiment {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "positive"):
		return domain.SentimentPositive
	case strings.Contains(lower, "negative"):
		return domain.SentimentNegative
	case strings.Contains(lower, "neutral"):
		return domain.SentimentNeutral
	default:
		return domain.SentimentUnknown
	}
}

func dropUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == unknownWord || !strings.Contains(s, unknownWord) {
		return s
	}
	return strings.TrimSpace(strings.ReplaceAll(s, unknownWord, ""))
}

// splitThemes splits on commas and trims each token. Empty tokens ("a,,b",
// a trailing comma) are dropped rather than kept as blank themes.
func splitThemes(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	themes := make([]string, 0, len(parts))
	for _, part := range parts {
		if theme := strings.TrimSpace(part); theme != "" {
			themes = append(themes, theme)
		}
	}
	return themes
}
