package kafka

import (
	"context"
	"fmt"

	"blendshop/internal/logger"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer, log: log}
}

// Publish writes one message to the given topic, keyed for per-order
// ordering on the consumer side.
func (p *Producer) Publish(topic, key string, value []byte) error {
	err := p.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("failed to publish to %s: %v", topic, err))
		return err
	}
	p.log.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s bytes=%d", key, len(value)))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
