package notifications

import (
	"context"
	"fmt"

	"eventbook/internal/bookings"
	"eventbook/internal/shared/config"
	"eventbook/pkg/logger"

	"github.com/IBM/sarama"
)

// Producer publishes booking events to Kafka. It satisfies the reservation
// engine's publisher hook.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewProducerConfig returns the sarama settings used for booking events:
// acks from all in-sync replicas and idempotent writes.
func NewProducerConfig(cfg config.KafkaConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = "eventbook-api"
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Timeout = cfg.Timeout
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Version = sarama.V2_8_0_0
	return saramaConfig
}

func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewProducerWith(sp, cfg.BookingTopic), nil
}

// NewProducerWith wraps an existing sync producer.
func NewProducerWith(sp sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: sp, topic: topic, log: logger.GetDefault()}
}

func (p *Producer) PublishBookingConfirmed(ctx context.Context, b *bookings.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := NewBookingConfirmed(b).toProducerMessage(p.topic)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish booking %s: %w", b.ID, err)
	}

	p.log.Debug("Booking event published",
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
		"booking_id", b.ID.String(),
	)
	return nil
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
