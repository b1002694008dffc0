package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const (
	handlerRetries      = 3
	handlerRetryBackoff = 200 * time.Millisecond
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message. An error that survives the retries stops the consumer
// and leaves the message uncommitted, so it is redelivered after restart.
type Handler func(ctx context.Context, key, value []byte) error

// Consumer reads one topic of a consumer group and commits a message only after it was handled.
type Consumer struct {
	r     messageReader
	topic string

	newBackOff func() backoff.BackOff
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		MaxWait:           time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	c := newConsumerWithReader(kafka.NewReader(cfg))
	c.topic = topic
	return c
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{
		r: r,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(handlerRetryBackoff), handlerRetries)
		},
	}
}

func (c *Consumer) Topic() string { return c.topic }

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume blocks until ctx is done, the reader fails or a handler keeps failing.
func (c *Consumer) Consume(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}

		attempt := 0
		op := func() error {
			attempt++
			err := handle(ctx, msg.Key, msg.Value)
			if err != nil && models.IsValidationError(err) {
				// повтор не поможет: сообщение никогда не станет валидным
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, wait time.Duration) {
			slog.Warn("kafka handler failed, retrying",
				"topic", msg.Topic, "offset", msg.Offset, "attempt", attempt, "wait", wait.String(), "error", err.Error())
		}
		if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
			if !models.IsValidationError(err) {
				return errors.Wrapf(err, "handle message at offset %d", msg.Offset)
			}
			slog.Error("skip invalid message", "topic", msg.Topic, "offset", msg.Offset, "error", err.Error())
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

// DecodeJSON adapts a typed handler. A payload that is not valid JSON for T is reported as a
// validation error, so Consume commits it and moves on.
func DecodeJSON[T any](fn func(ctx context.Context, msg T) error) Handler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		var m T
		if err := json.Unmarshal(value, &m); err != nil {
			return models.Invalid("payload", err.Error())
		}
		return fn(ctx, m)
	}
}
