package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "type", Value: []byte(eventType)}},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

type KafkaSubscriber struct {
	r *kafka.Reader
}

func NewKafkaSubscriber(brokers []string, topic, groupID string) *KafkaSubscriber {
	return &KafkaSubscriber{r: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, handle func(body []byte)) error {
	for {
		m, err := s.r.ReadMessage(ctx)
		if err != nil {
			return err
		}
		handle(m.Value)
	}
}

func (s *KafkaSubscriber) Close() error {
	return s.r.Close()
}
