// Package queue carries payment confirmations from the webhook endpoints to
// the fulfilment worker over AMQP.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"guia_service/internal/payments"
)

// publisher is the part of *amqp091.Channel that Dispatch needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	publisher    publisher
	exchangeName string
	queueName    string
	log          *zap.Logger
}

func NewClient(url, exchangeName, queueName string, log *zap.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		publisher:    channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		log:          log,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// one unacked confirmation at a time per worker
	return c.channel.Qos(1, 0, false)
}

// Dispatch publishes a confirmation as a persistent message. It satisfies
// payments.Dispatcher.
func (c *Client) Dispatch(ctx context.Context, conf payments.Confirmation) error {
	body, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.publisher.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    conf.Provider + ":" + conf.ExternalID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish confirmation: %w", err)
	}

	c.log.Info("published payment confirmation",
		zap.String("orderId", conf.OrderID),
		zap.String("provider", conf.Provider),
		zap.String("queue", c.queueName))
	return nil
}

// Handler fulfils one confirmation.
type Handler func(ctx context.Context, conf payments.Confirmation) error

// Consume blocks, handing deliveries to handler until ctx is cancelled or the
// channel closes.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log.Info("consuming payment confirmations", zap.String("queue", c.queueName))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopping consumption", zap.Error(ctx.Err()))
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			handleDelivery(ctx, delivery, handler, c.log)
		}
	}
}

type outcome int

const (
	acked outcome = iota
	requeued
	dropped
)

// handleDelivery acks on success and on errors that can never succeed,
// requeues anything else and drops bodies that are not confirmations.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler, log *zap.Logger) outcome {
	var conf payments.Confirmation
	if err := json.Unmarshal(d.Body, &conf); err != nil || conf.OrderID == "" {
		log.Error("malformed confirmation message", zap.Error(err), zap.ByteString("body", d.Body))
		_ = d.Nack(false, false)
		return dropped
	}

	if err := handler(ctx, conf); err != nil {
		if payments.IsPermanent(err) {
			log.Error("dropping unfulfillable confirmation",
				zap.String("orderId", conf.OrderID),
				zap.Error(err))
			_ = d.Ack(false)
			return acked
		}
		log.Warn("fulfilment failed, requeueing",
			zap.String("orderId", conf.OrderID),
			zap.Error(err))
		_ = d.Nack(false, true)
		return requeued
	}

	_ = d.Ack(false)
	log.Info("confirmation processed", zap.String("orderId", conf.OrderID))
	return acked
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
