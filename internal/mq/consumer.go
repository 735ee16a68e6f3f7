package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrRejected marks a message that can never be processed; it is dead-lettered without requeue
var ErrRejected = errors.New("message rejected")

// MessageHandler is a function that processes a message
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	channel          *amqp.Channel
	queue            string
	prefetchCount    int
	workers          int
	logger           *zap.Logger
	messageProcessor MessageHandler
	wg               sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Connection       *Connection
	Queue            string
	DLQQueue         string
	Exchange         string
	RoutingKey       string
	PrefetchCount    int
	Workers          int
	Logger           *zap.Logger
	MessageProcessor MessageHandler
}

// NewConsumer creates a new RabbitMQ consumer
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := declareTopology(ch, cfg.Exchange, cfg.Queue, cfg.DLQQueue, cfg.RoutingKey, cfg.Logger); err != nil {
		ch.Close()
		return nil, err
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Consumer{
		channel:          ch,
		queue:            cfg.Queue,
		prefetchCount:    cfg.PrefetchCount,
		workers:          workers,
		logger:           cfg.Logger,
		messageProcessor: cfg.MessageProcessor,
	}, nil
}

// Start starts the worker pool. Workers stop taking new messages when ctx is
// cancelled or the channel closes; a message already being processed runs to
// completion so its effect is recorded before it is acknowledged.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetchCount),
		zap.Int("workers", c.workers),
	)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.work(ctx, i, msgs)
	}

	return nil
}

func (c *Consumer) work(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()
	logger := c.logger.With(zap.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled, stopping")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Warn("message channel closed")
				return
			}
			c.processMessage(ctx, logger, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, logger *zap.Logger, msg amqp.Delivery) {
	logger.Debug("received message from queue",
		zap.String("message_id", msg.MessageId),
		zap.Bool("redelivered", msg.Redelivered),
		zap.Int("body_size", len(msg.Body)),
	)

	err := c.messageProcessor(context.WithoutCancel(ctx), msg.Body)
	if err != nil {
		requeue := !msg.Redelivered && !errors.Is(err, ErrRejected)
		logger.Error("failed to process message",
			zap.Error(err),
			zap.String("message_id", msg.MessageId),
			zap.Bool("requeue", requeue),
		)

		// requeue=false routes the message to the DLQ
		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			logger.Error("failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		logger.Error("failed to ACK message", zap.Error(ackErr))
	}
}

// Close waits for the workers to finish and closes the consumer channel.
// The context given to Start must be cancelled first.
func (c *Consumer) Close() error {
	c.wg.Wait()
	if c.channel != nil {
		return c.channel.Close()
	}
	return nil
}
