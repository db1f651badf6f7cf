package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventbook/internal/shared/config"
	"eventbook/pkg/logger"

	"github.com/IBM/sarama"
)

// Handler reacts to one confirmed booking. Returning an error makes the
// consumer retry the message.
type Handler interface {
	HandleBookingConfirmed(ctx context.Context, msg BookingConfirmed) error
}

type ConsumerConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{MaxRetries: 3, RetryBackoff: time.Second}
}

// Consumer runs a pool of consumer group sessions over the booking topic.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	workers int
	handler *ConsumerGroupHandler
	log     *logger.Logger
}

func NewConsumer(cfg config.KafkaConfig, handler Handler) (*Consumer, error) {
	// Create consumer group config
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = "eventbook-notifier"
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Group.Session.Timeout = 30 * time.Second
	saramaConfig.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second
	saramaConfig.Consumer.Return.Errors = true

	// Create consumer group
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		group:   group,
		topics:  []string{cfg.BookingTopic},
		workers: cfg.Workers,
		handler: NewConsumerGroupHandler(handler, DefaultConsumerConfig()),
		log:     logger.GetDefault(),
	}, nil
}

// Run blocks until ctx is cancelled and every worker has returned.
func (c *Consumer) Run(ctx context.Context) error {
	// Drain group errors
	go func() {
		for err := range c.group.Errors() {
			c.log.WithError(err).Error("Consumer group error")
		}
	}()

	c.log.Info("Starting booking consumers", "workers", c.workers, "topics", c.topics)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.runWorker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	return nil
}

func (c *Consumer) runWorker(ctx context.Context, workerID int) {
	for {
		if err := c.group.Consume(ctx, c.topics, c.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.log.WithError(err).Warn("Consume failed", "worker", workerID)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			c.log.Info("Booking consumer stopped", "worker", workerID)
			return
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

// ConsumerGroupHandler decodes booking messages and hands them to a Handler
// with bounded retries. Offsets are marked once a message is handled or
// given up on, so a poison message never stalls its partition.
type ConsumerGroupHandler struct {
	handler Handler
	cfg     ConsumerConfig
	log     *logger.Logger
}

func NewConsumerGroupHandler(handler Handler, cfg ConsumerConfig) *ConsumerGroupHandler {
	return &ConsumerGroupHandler{handler: handler, cfg: cfg, log: logger.GetDefault()}
}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.processMessage(session.Context(), message); err != nil {
				if session.Context().Err() != nil {
					return nil
				}
				h.log.WithError(err).Error("Dropping booking message",
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
				)
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *ConsumerGroupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	if eventType := header(message, headerEventType); eventType != EventTypeBookingConfirmed {
		h.log.Debug("Skipping message", "event_type", eventType, "offset", message.Offset)
		return nil
	}

	// Parse message
	var msg BookingConfirmed
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal booking message: %w", err)
	}

	return h.executeWithRetry(ctx, msg)
}

func (h *ConsumerGroupHandler) executeWithRetry(ctx context.Context, msg BookingConfirmed) error {
	var err error
	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if err = h.handler.HandleBookingConfirmed(ctx, msg); err == nil {
			return nil
		}
		if attempt == h.cfg.MaxRetries {
			break
		}

		// Exponential backoff
		delay := h.cfg.RetryBackoff * time.Duration(1<<attempt)
		h.log.WithError(err).Warn("Retrying booking message", "booking_id", msg.BookingID, "attempt", attempt+1, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("booking %s failed after %d attempts: %w", msg.BookingID, h.cfg.MaxRetries+1, err)
}
