package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ReportRequestedMessage asks the fulfillment consumer to resolve a report
type ReportRequestedMessage struct {
	ReportID uuid.UUID `json:"report_id"`
}

// Publisher publishes report requests to RabbitMQ
type Publisher struct {
	mu         sync.Mutex
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	Connection *Connection
	Exchange   string
	Queue      string
	DLQQueue   string
	RoutingKey string
	Logger     *zap.Logger
}

// NewPublisher creates a new report request publisher
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Requests published before the consumer starts still need a bound queue
	if err := declareTopology(ch, cfg.Exchange, cfg.Queue, cfg.DLQQueue, cfg.RoutingKey, cfg.Logger); err != nil {
		ch.Close()
		return nil, err
	}

	return &Publisher{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     cfg.Logger,
	}, nil
}

// PublishReportRequested publishes one report requested message
func (p *Publisher) PublishReportRequested(ctx context.Context, msg ReportRequestedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    msg.ReportID.String(),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish report request: %w", err)
	}

	p.logger.Debug("published report request",
		zap.String("routing_key", p.routingKey),
		zap.String("report_id", msg.ReportID.String()),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
