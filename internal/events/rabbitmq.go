package events

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const LifecycleExchange = "lifecycle_events_fanout"

// DialRabbit connects to RabbitMQ, retrying while the broker starts up.
func DialRabbit(url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			log.Println("Connected to RabbitMQ")
			return conn, nil
		}
		log.Printf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %s...", i+1, attempts, err, delay)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("could not connect to RabbitMQ after %d attempts: %w", attempts, err)
}

type RabbitPublisher struct {
	ch *amqp.Channel
}

func NewRabbitPublisher(conn *amqp.Connection) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(LifecycleExchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	return &RabbitPublisher{ch: ch}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, eventType, key string, payload []byte) error {
	return p.ch.PublishWithContext(ctx,
		LifecycleExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
			Type:         eventType,
			Timestamp:    time.Now(),
		},
	)
}

func (p *RabbitPublisher) Close() error {
	return p.ch.Close()
}

// RabbitSubscriber reads the lifecycle exchange through a private auto-delete queue.
type RabbitSubscriber struct {
	ch    *amqp.Channel
	queue string
}

func NewRabbitSubscriber(conn *amqp.Connection) (*RabbitSubscriber, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(LifecycleExchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.QueueBind(q.Name, "", LifecycleExchange, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	return &RabbitSubscriber{ch: ch, queue: q.Name}, nil
}

func (s *RabbitSubscriber) Subscribe(ctx context.Context, handle func(body []byte)) error {
	msgs, err := s.ch.Consume(s.queue, "", true, false, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			handle(d.Body)
		}
	}
}

func (s *RabbitSubscriber) Close() error {
	return s.ch.Close()
}
