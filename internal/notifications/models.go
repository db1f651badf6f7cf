package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"eventbook/internal/bookings"

	"github.com/IBM/sarama"
)

const (
	EventTypeBookingConfirmed = "booking.confirmed"

	headerEventType = "event_type"
	headerBookingID = "booking_id"
	headerEventID   = "event_id"
)

// BookingConfirmed is the message value published after a reservation
// commits. Messages are keyed by event id so one event's bookings stay
// ordered within a partition.
type BookingConfirmed struct {
	BookingID  string    `json:"booking_id"`
	BookingRef string    `json:"booking_ref"`
	EventID    string    `json:"event_id"`
	BuyerID    string    `json:"buyer_id"`
	TicketType string    `json:"ticket_type"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewBookingConfirmed(b *bookings.Booking) BookingConfirmed {
	return BookingConfirmed{
		BookingID:  b.ID.String(),
		BookingRef: b.BookingRef,
		EventID:    b.EventID.String(),
		BuyerID:    b.BuyerID.String(),
		TicketType: b.TicketType,
		Quantity:   b.Quantity,
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
	}
}

func (m BookingConfirmed) toProducerMessage(topic string) (*sarama.ProducerMessage, error) {
	value, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking message: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(m.EventID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerEventType), Value: []byte(EventTypeBookingConfirmed)},
			{Key: []byte(headerBookingID), Value: []byte(m.BookingID)},
			{Key: []byte(headerEventID), Value: []byte(m.EventID)},
		},
		Timestamp: m.CreatedAt,
	}, nil
}

func header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
