package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Топология обмена сообщениями.
const (
	// ExchangeExecutions — topic exchange событий executions.
	ExchangeExecutions = "morana.executions"

	// QueuePending — очередь executions, ожидающих выполнения.
	QueuePending = "executions.pending"

	// QueueCompleted — очередь уведомлений о завершении.
	QueueCompleted = "executions.completed"

	// RoutingPending — ключ маршрутизации события «execution создан».
	RoutingPending = "execution.pending"

	// RoutingCompleted — ключ маршрутизации события «execution завершён».
	RoutingCompleted = "execution.completed"
)

// DeclareTopology объявляет exchange, очереди и привязки.
// Идемпотентна: повторный вызов на существующей топологии безопасен.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		ExchangeExecutions,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeExecutions, err)
	}

	bindings := []struct {
		queue   string
		routing string
	}{
		{QueuePending, RoutingPending},
		{QueueCompleted, RoutingCompleted},
	}

	for _, b := range bindings {
		if _, err := ch.QueueDeclare(
			b.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}

		if err := ch.QueueBind(b.queue, b.routing, ExchangeExecutions, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", b.queue, err)
		}
	}

	return nil
}
