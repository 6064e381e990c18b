package domain

import "time"

// FeedItem is the message body carried on the news queue.
type FeedItem struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Link      string   `json:"link,omitempty"`
	Published string   `json:"published,omitempty"`
	Countries []string `json:"countries"`

	// Source names the configured feed the item came from. Not transported.
	Source string `json:"-"`
}

// Sentiment is the fixed vocabulary a record may carry.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentUnknown  Sentiment = "Unknown"
)

// Valid reports whether s belongs to the fixed vocabulary.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral, SentimentUnknown:
		return true
	default:
		return false
	}
}

// Analysis is the structured form of a classifier reply.
type Analysis struct {
	Sentiment Sentiment
	Themes    []string
}

// EnrichedRecord is an article persisted after successful classification.
// ID and CreatedAt are assigned by the store.
type EnrichedRecord struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Country   string    `json:"country"`
	Sentiment Sentiment `json:"sentiment"`
	Themes    []string  `json:"themes"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions narrows a store read. Zero values mean "no bound".
type ListOptions struct {
	Since time.Time
	Limit int
}
