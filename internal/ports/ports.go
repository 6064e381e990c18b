package ports

import (
	"context"
	"errors"
	"time"

	"NewsAtlas/internal/domain"
)

// ErrRejected marks classifier failures that retrying cannot fix (bad credentials, bad request).
var ErrRejected = errors.New("request rejected")

// CountryResolver maps ordered geography candidates to a canonical country name.
type CountryResolver interface {
	Resolve(candidates []string) (string, bool)
}

// Classifier sends article text to the remote analysis service and returns its raw reply.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// RecordStore is append-only persistence for enriched records.
type RecordStore interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, record domain.EnrichedRecord) (domain.EnrichedRecord, error)
	ListAll(ctx context.Context, opts domain.ListOptions) ([]domain.EnrichedRecord, error)
}

// FeedSource pulls the current items of all configured feeds.
type FeedSource interface {
	Fetch(ctx context.Context) ([]domain.FeedItem, error)
}

// Publisher puts feed items on the news queue.
type Publisher interface {
	Publish(ctx context.Context, item domain.FeedItem) error
}

// Disposition tells the transport what to do with a delivered message.
type Disposition int

const (
	// Ack removes the message from the queue.
	Ack Disposition = iota
	// DeadLetter parks the message on the dead-letter subject, then acks the original.
	DeadLetter
	// Requeue leaves the message for redelivery.
	Requeue
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case DeadLetter:
		return "dead-letter"
	case Requeue:
		return "requeue"
	default:
		return "unknown"
	}
}

// Delivery is a message handed to a consumer handler.
type Delivery struct {
	Data       []byte
	Subject    string
	Redelivery bool
}

// Verdict is what a handler decided for a delivery. Reason is attached to dead letters.
type Verdict struct {
	Disposition Disposition
	Reason      string
}

// Handler processes one delivery at a time.
type Handler func(ctx context.Context, d Delivery) Verdict

// Scheduler controls when the feed poller executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Consumer pulls messages from the news queue and settles them per the handler's verdict.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}
