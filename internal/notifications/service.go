package notifications

import (
	"context"
	"fmt"
	"time"

	"eventbook/internal/shared/constants"
	"eventbook/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Sender delivers the buyer-facing confirmation.
type Sender interface {
	SendBookingConfirmation(ctx context.Context, msg BookingConfirmed) error
}

// LogSender writes confirmations to the structured log.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{log: logger.GetDefault()}
}

func (s *LogSender) SendBookingConfirmation(ctx context.Context, msg BookingConfirmed) error {
	s.log.InfoWithContext(ctx, "Booking confirmation", map[string]interface{}{
		"booking_id":  msg.BookingID,
		"booking_ref": msg.BookingRef,
		"event_id":    msg.EventID,
		"buyer_id":    msg.BuyerID,
		"ticket_type": msg.TicketType,
		"quantity":    msg.Quantity,
		"total_price": msg.TotalPrice,
	})
	return nil
}

// Notifier handles booking events. Kafka delivers at least once, so a Redis
// marker per booking keeps a redelivered message from notifying twice. A nil
// client disables the marker.
type Notifier struct {
	sender Sender
	redis  *redis.Client
	log    *logger.Logger
}

func NewNotifier(sender Sender, client *redis.Client) *Notifier {
	return &Notifier{sender: sender, redis: client, log: logger.GetDefault()}
}

func (n *Notifier) HandleBookingConfirmed(ctx context.Context, msg BookingConfirmed) error {
	// Claim the marker; a taken marker means this booking was handled
	key := constants.BuildBookingNotifiedKey(msg.BookingID)
	if n.redis != nil {
		fresh, err := n.redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), constants.TTL_BOOKING_NOTIFIED).Result()
		if err != nil {
			return fmt.Errorf("failed to claim notification marker: %w", err)
		}
		if !fresh {
			n.log.Debug("Booking already notified", "booking_id", msg.BookingID)
			return nil
		}
	}

	// Send confirmation
	if err := n.sender.SendBookingConfirmation(ctx, msg); err != nil {
		if n.redis != nil {
			// Release the marker so the retry can send
			if delErr := n.redis.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
				n.log.WithError(delErr).Warn("Failed to release notification marker", "booking_id", msg.BookingID)
			}
		}
		return err
	}
	return nil
}
