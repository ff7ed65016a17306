package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/shortng/internal/app/model"
	apprepository "github.com/sifan077/shortng/internal/app/repository"
	"go.uber.org/zap"
)

const (
	saveFetchBatch      = 10
	saveFetchMaxWait    = 5 * time.Second
	saveFetchRetryDelay = time.Second
	saveMaxDeliver      = 5
	saveAckWait         = 30 * time.Second
)

var errMalformedEvent = errors.New("malformed save event")

// ackable is the acknowledgement surface of a JetStream message.
type ackable interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// SaveEventConsumer consumes save events from NATS JetStream into the journal
type SaveEventConsumer struct {
	js         nats.JetStreamContext
	logger     *zap.Logger
	repo       apprepository.SaveEventRepository
	retryDelay time.Duration
}

// NewSaveEventConsumer creates a new save event consumer
func NewSaveEventConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.SaveEventRepository) *SaveEventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaveEventConsumer{js: js, logger: logger, repo: repo, retryDelay: saveFetchRetryDelay}
}

// EnsureStream creates the stream if it does not exist yet.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.SaveStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.SaveStreamName,
		Subjects: []string{model.SaveStreamSubject},
		MaxBytes: model.SaveStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Start begins consuming save events until ctx is cancelled
func (c *SaveEventConsumer) Start(ctx context.Context) error {
	if err := EnsureStream(c.js); err != nil {
		return err
	}

	// Create consumer if not exists
	if _, err := c.js.ConsumerInfo(model.SaveStreamName, model.SaveConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.SaveStreamName, &nats.ConsumerConfig{
			Durable:    model.SaveConsumerName,
			AckPolicy:  nats.AckExplicitPolicy,
			AckWait:    saveAckWait,
			MaxDeliver: saveMaxDeliver,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.SaveStreamSubject, model.SaveConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Unsubscribe() }()
		c.consume(ctx, func() ([]*nats.Msg, error) {
			return sub.Fetch(saveFetchBatch, nats.MaxWait(saveFetchMaxWait))
		})
	}()
	return nil
}

func (c *SaveEventConsumer) consume(ctx context.Context, fetch func() ([]*nats.Msg, error)) {
	for ctx.Err() == nil {
		msgs, err := fetch()
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}

		for _, msg := range msgs {
			c.settle(ctx, msg.Data, msg)
		}
	}
	c.logger.Info("save event consumer stopped")
}

// settle handles one message. Events that can never decode are terminated so
// they are not redelivered; storage failures are retried up to MaxDeliver.
func (c *SaveEventConsumer) settle(ctx context.Context, data []byte, msg ackable) {
	err := c.Handle(ctx, data)
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, errMalformedEvent):
		_ = msg.Term()
	default:
		_ = msg.Nak()
	}
}

// Handle decodes one message and stores it in the journal.
func (c *SaveEventConsumer) Handle(ctx context.Context, data []byte) error {
	var event model.SaveEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Error("failed to unmarshal save event", zap.Error(err))
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		c.logger.Error("failed to store save event",
			zap.String("id", event.ID),
			zap.String("filename", event.Filename),
			zap.Error(err))
		return err
	}

	c.logger.Debug("save event stored",
		zap.String("id", event.ID),
		zap.String("filename", event.Filename),
		zap.String("source", event.Source),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}
