package kafka

import (
	"context"
	"time"

	"github.com/iwtcode/diagAdapter/internal/config"
	"github.com/iwtcode/diagAdapter/internal/interfaces"
	"github.com/iwtcode/diagAdapter/internal/middleware/logging"

	"github.com/segmentio/kafka-go"
)

type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer создает продюсера результатов. Без KAFKA_BROKER
// сообщения только логируются на уровне DEBUG.
func NewKafkaProducer(cfg *config.AppConfig, logger *logging.Logger) (interfaces.KafkaService, error) {
	if cfg.KafkaBroker == "" {
		logger.Info("KAFKA_BROKER is empty, results will not be published")
		return &noopProducer{logger: logger}, nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBroker),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer}, nil
}

// Produce отправляет сообщение в Kafka. Ключ - серийный номер UUT,
// поэтому сообщения одного изделия попадают в одну партицию.
func (p *KafkaProducer) Produce(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx,
		kafka.Message{
			Key:   key,
			Value: value,
		},
	)
}

// Close закрывает соединение с Kafka
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type noopProducer struct {
	logger *logging.Logger
}

func (p *noopProducer) Produce(_ context.Context, key, value []byte) error {
	p.logger.Debug("Result not published", "key", string(key), "bytes", len(value))
	return nil
}

func (p *noopProducer) Close() error { return nil }
