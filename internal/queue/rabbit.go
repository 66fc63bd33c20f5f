package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/config"
	"github.com/motorly/fleet-alerts/internal/models"
)

// RabbitMqClient carries ad-hoc push requests. The HTTP edge accepts and
// queues them; an in-process consumer performs delivery. Messages whose
// handling fails are republished to the failed queue for inspection.
type RabbitMqClient struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	Config    config.RabbitMQConfig
	Connected bool
	log       *zap.Logger
}

func NewRabbitMqService(cfg config.RabbitMQConfig, log *zap.Logger) (*RabbitMqClient, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	return &RabbitMqClient{
		Conn:      conn,
		Channel:   channel,
		Config:    cfg,
		Connected: true,
		log:       log,
	}, nil
}

func (r *RabbitMqClient) CloseConnection() {
	r.Channel.Close()
	r.Conn.Close()
}

func (r *RabbitMqClient) IsConnected() bool {
	return r.Connected && !r.Conn.IsClosed()
}

// set up our exchange
func (r *RabbitMqClient) SetUpExchangeAndQueue() error {
	if err := r.Channel.ExchangeDeclare(
		r.Config.Exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("error in declaring exchange")
	}
	queues := []string{
		r.Config.PushQueue,
		r.Config.FailedQueue,
	}
	for _, queueName := range queues {
		if _, err := r.Channel.QueueDeclare(
			queueName,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return fmt.Errorf("error declaring queue")
		}
		err := r.Channel.QueueBind(
			queueName,
			queueName,
			r.Config.Exchange,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", queueName, err)
		}
	}
	return nil
}

func (r *RabbitMqClient) Publish(ctx context.Context, routingKey string, message interface{}) error {
	by, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	err = r.Channel.PublishWithContext(
		ctx,
		r.Config.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         by,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (r *RabbitMqClient) PublishPush(ctx context.Context, message models.PushMessage) error {
	return r.Publish(ctx, r.Config.PushQueue, message)
}

func (r *RabbitMqClient) PublishFailed(ctx context.Context, message models.PushMessage) error {
	return r.Publish(ctx, r.Config.FailedQueue, message)
}

// ConsumePush drains the push queue until ctx is cancelled, invoking handler
// per message. Failed messages are acked off the push queue and republished
// to the failed queue so a poison message cannot wedge delivery.
func (r *RabbitMqClient) ConsumePush(ctx context.Context, handler func(ctx context.Context, msg models.PushMessage) error) error {
	deliveries, err := r.Channel.Consume(
		r.Config.PushQueue,
		"fleet-alerts-push", // consumer tag
		false,               // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("push queue consumer channel closed")
			}
			var msg models.PushMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				r.log.Error("dropping malformed push message", zap.Error(err))
				d.Ack(false)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				r.log.Error("push message handling failed",
					zap.String("id", msg.ID), zap.Error(err))
				if err := r.PublishFailed(ctx, msg); err != nil {
					r.log.Error("failed to dead-letter push message",
						zap.String("id", msg.ID), zap.Error(err))
				}
			}
			d.Ack(false)
		}
	}
}
