package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение. Возвращённая ошибка приводит
// к nack с requeue, успех — к ack.
type Handler func(ctx context.Context, body []byte) error

// Consumer читает сообщения из очереди и переживает переподключения.
type Consumer struct {
	conn   *Connection
	queue  string
	logger *slog.Logger
}

// NewConsumer создаёт Consumer для указанной очереди и объявляет топологию.
func NewConsumer(conn *Connection, queue string, logger *slog.Logger) (*Consumer, error) {
	if err := DeclareTopology(conn.Channel()); err != nil {
		return nil, err
	}
	return &Consumer{conn: conn, queue: queue, logger: logger}, nil
}

// Start запускает цикл потребления. Блокирует до отмены контекста.
// При разрыве соединения ждёт переподключения и продолжает.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	for {
		if err := c.consume(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("consume loop interrupted", "queue", c.queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("resuming consumption after reconnect", "queue", c.queue)
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler Handler) error {
	ch := c.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	// Один необработанный execution на воркер: выполнение долгое,
	// накапливать prefetch нет смысла.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consuming", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	if err := handler(ctx, d.Body); err != nil {
		c.logger.Error("handler failed", "queue", c.queue, "error", err)
		// Requeue только при первой доставке, иначе сообщение
		// зациклится между очередью и упавшим обработчиком.
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

// ParsePayload разбирает JSON-тело сообщения в типизированный payload.
func ParsePayload[T any](body []byte) (T, error) {
	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal payload: %w", err)
	}
	return payload, nil
}
