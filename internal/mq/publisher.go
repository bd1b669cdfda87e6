package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExecutionPendingPayload — событие «создан execution, ожидает выполнения».
type ExecutionPendingPayload struct {
	ExecutionID string `json:"execution_id"`
}

// ExecutionCompletedPayload — событие «execution завершён».
type ExecutionCompletedPayload struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Publisher публикует события executions в шину.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher и объявляет топологию.
func NewPublisher(conn *Connection, logger *slog.Logger) (*Publisher, error) {
	if err := DeclareTopology(conn.Channel()); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// PublishExecutionPending публикует событие о новом execution.
func (p *Publisher) PublishExecutionPending(ctx context.Context, executionID string) error {
	return p.publish(ctx, RoutingPending, ExecutionPendingPayload{ExecutionID: executionID})
}

// PublishExecutionCompleted публикует уведомление о завершении execution.
func (p *Publisher) PublishExecutionCompleted(ctx context.Context, executionID, status, errMsg string) error {
	return p.publish(ctx, RoutingCompleted, ExecutionCompletedPayload{
		ExecutionID: executionID,
		Status:      status,
		Error:       errMsg,
	})
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx,
			ExchangeExecutions,
			routingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.Debug("published event", "routing_key", routingKey)
	return nil
}
