package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerImage/internal/app/model"
	apprepository "github.com/sifan077/PowerImage/internal/app/repository"
	natsclient "github.com/sifan077/PowerImage/internal/infra/nats"
	"go.uber.org/zap"
)

const (
	accessFetchBatch   = 10
	accessFetchTimeout = 5 * time.Second
	accessRetryDelay   = time.Second
)

type fetchFunc func(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)

// AccessConsumer persists link access events from NATS JetStream.
type AccessConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.AccessEventRepository

	// retryDelay is the pause after a failed fetch.
	retryDelay time.Duration
}

// NewAccessConsumer creates a new access event consumer.
func NewAccessConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.AccessEventRepository) *AccessConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessConsumer{js: js, logger: logger, repo: repo, retryDelay: accessRetryDelay}
}

// Start ensures the stream and durable consumer exist and consumes until ctx is done.
func (c *AccessConsumer) Start(ctx context.Context) error {
	if err := natsclient.EnsureStream(c.js, &nats.StreamConfig{
		Name:       model.AccessStreamName,
		Subjects:   []string{model.AccessStreamSubject},
		MaxBytes:   model.AccessStreamMaxBytes,
		Duplicates: 2 * time.Minute,
	}); err != nil {
		return err
	}

	if _, err := c.js.ConsumerInfo(model.AccessStreamName, model.AccessConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.AccessStreamName, &nats.ConsumerConfig{
			Durable:   model.AccessConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.AccessStreamSubject, model.AccessConsumerName, nats.Bind(model.AccessStreamName, model.AccessConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Unsubscribe() }()
		c.consume(ctx, sub.Fetch)
	}()
	return nil
}

func (c *AccessConsumer) consume(ctx context.Context, fetch fetchFunc) {
	for {
		if ctx.Err() != nil {
			c.logger.Info("access consumer stopped")
			return
		}

		msgs, err := fetch(accessFetchBatch, nats.MaxWait(accessFetchTimeout))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Error("failed to fetch access events", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg.Data, msg.Ack, msg.Nak)
		}
	}
}

func (c *AccessConsumer) handle(ctx context.Context, data []byte, ack, nak func(...nats.AckOpt) error) {
	var event model.LinkAccessEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// A payload that never decodes would be redelivered forever.
		c.logger.Error("dropping undecodable access event", zap.Error(err))
		_ = ack()
		return
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		c.logger.Error("failed to store access event",
			zap.String("id", event.ID),
			zap.String("alias", event.Alias),
			zap.Error(err))
		_ = nak()
		return
	}

	c.logger.Debug("access event stored",
		zap.String("id", event.ID),
		zap.String("alias", event.Alias),
		zap.String("ip", event.IP),
		zap.Time("timestamp", event.Timestamp),
	)
	_ = ack()
}
