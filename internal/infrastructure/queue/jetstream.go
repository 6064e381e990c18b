package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

const (
	// HeaderReason carries the failure description on dead letters.
	HeaderReason = "Newsatlas-Reason"
	// HeaderOrigin carries the subject a dead letter was first published on.
	HeaderOrigin = "Newsatlas-Origin"

	// Classification with retries can take minutes; the ack deadline must outlast it.
	ackWait       = 5 * time.Minute
	deadLetterTTL = 7 * 24 * time.Hour
)

// JetStream is the news queue: a work-queue stream consumed by one durable
// consumer, plus a dead-letter stream for messages that cannot be processed.
type JetStream struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	cfg    config.NATSConfig
	logger *slog.Logger
}

var (
	_ ports.Publisher = (*JetStream)(nil)
	_ ports.Consumer  = (*JetStream)(nil)
)

// Connect dials NATS and makes sure both streams exist.
func Connect(ctx context.Context, cfg config.NATSConfig, log *slog.Logger) (*JetStream, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "queue")

	nc, err := nats.Connect(cfg.URL,
		nats.Name("newsatlas"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream: %w", err)
	}

	q := &JetStream{conn: nc, js: js, cfg: cfg, logger: log}
	if err := q.ensureStreams(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return q, nil
}

func (q *JetStream) ensureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        q.cfg.Stream,
			Subjects:    []string{q.cfg.Subject},
			Description: "feed items waiting for enrichment",
			Retention:   jetstream.WorkQueuePolicy,
			Storage:     jetstream.FileStorage,
			Duplicates:  q.cfg.DuplicateWindow,
		},
	}
	if q.cfg.DeadLetterStream != "" && q.cfg.DeadLetterSubject != "" {
		streams = append(streams, jetstream.StreamConfig{
			Name:        q.cfg.DeadLetterStream,
			Subjects:    []string{q.cfg.DeadLetterSubject},
			Description: "feed items the enricher gave up on",
			Retention:   jetstream.LimitsPolicy,
			Storage:     jetstream.FileStorage,
			MaxAge:      deadLetterTTL,
		})
	}

	for _, sc := range streams {
		if _, err := q.js.CreateOrUpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("ensure stream %s: %w", sc.Name, err)
		}
		q.logger.Debug("stream ready", "stream", sc.Name, "subjects", sc.Subjects)
	}
	return nil
}

// Publish puts item on the news subject. Items are deduplicated by link within
// the stream's duplicate window, so re-polling a feed does not enqueue twice.
func (q *JetStream) Publish(ctx context.Context, item domain.FeedItem) error {
	if item.Countries == nil {
		item.Countries = []string{}
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode feed item: %w", err)
	}

	if _, err := q.js.Publish(ctx, q.cfg.Subject, payload, jetstream.WithMsgID(MessageID(item))); err != nil {
		return fmt.Errorf("publish to %s: %w", q.cfg.Subject, err)
	}
	return nil
}

// MessageID derives a stable id for dedup: from the link when present,
// from title and publication date otherwise.
func MessageID(item domain.FeedItem) string {
	key := item.Link
	if key == "" {
		key = item.Title + "\x00" + item.Published
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// Consume delivers messages to handler one at a time until ctx is done.
// It returns nil on cancellation.
func (q *JetStream) Consume(ctx context.Context, handler ports.Handler) error {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       q.cfg.Consumer,
		Description:   "enrichment worker",
		FilterSubject: q.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxAckPending: 1,
	})
	if err != nil {
		return fmt.Errorf("ensure consumer %s: %w", q.cfg.Consumer, err)
	}

	iter, err := consumer.Messages(jetstream.PullMaxMessages(1))
	if err != nil {
		return fmt.Errorf("open message iterator: %w", err)
	}
	defer iter.Stop()
	stop := context.AfterFunc(ctx, iter.Stop)
	defer stop()

	q.logger.Info("consuming", "stream", q.cfg.Stream, "consumer", q.cfg.Consumer)
	for {
		msg, err := iter.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || ctx.Err() != nil {
				return nil
			}
			q.logger.Warn("fetch message failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		q.dispatch(ctx, msg, handler)
	}
}

func (q *JetStream) dispatch(ctx context.Context, msg jetstream.Msg, handler ports.Handler) {
	delivery := ports.Delivery{Data: msg.Data(), Subject: msg.Subject()}
	if meta, err := msg.Metadata(); err == nil {
		delivery.Redelivery = meta.NumDelivered > 1
	}

	verdict := handler(ctx, delivery)

	var err error
	switch verdict.Disposition {
	case ports.Ack:
		err = msg.Ack()
	case ports.DeadLetter:
		err = q.DeadLetter(msg, verdict.Reason)
	case ports.Requeue:
		err = msg.Nak()
	}
	if err != nil {
		q.logger.Error("settle message failed", "disposition", verdict.Disposition.String(), "error", err)
	}
}

// DeadLetter copies msg to the dead-letter subject and acks the original.
// If parking fails the original is nak'ed so nothing is lost.
func (q *JetStream) DeadLetter(msg jetstream.Msg, reason string) error {
	if q.cfg.DeadLetterSubject == "" {
		q.logger.Warn("no dead-letter subject configured, dropping message", "reason", reason)
		return msg.Ack()
	}

	// Settling must finish even while the consumer is shutting down.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dead := nats.NewMsg(q.cfg.DeadLetterSubject)
	dead.Data = msg.Data()
	dead.Header.Set(HeaderReason, reason)
	dead.Header.Set(HeaderOrigin, msg.Subject())

	if _, err := q.js.PublishMsg(ctx, dead); err != nil {
		return errors.Join(fmt.Errorf("publish dead letter: %w", err), msg.Nak())
	}
	return msg.Ack()
}

// Close drains the connection so in-flight publishes are flushed.
func (q *JetStream) Close() error {
	if q == nil || q.conn == nil {
		return nil
	}
	if err := q.conn.Drain(); err != nil {
		q.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
