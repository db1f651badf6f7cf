package constants

import "time"

// Redis Cache Configuration
// Pattern: eventbook:{module}:{operation}:{identifier}

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_SEMI_STATIC_MEDIUM = 2 * time.Hour // event details
	TTL_BOOKING_NOTIFIED   = 7 * 24 * time.Hour
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "eventbook"
)

// ================== EVENTS MODULE ==================

const (
	CACHE_KEY_EVENT_DETAIL = CACHE_PREFIX + ":events:detail:uuid:" // + event-id
	TTL_EVENT_DETAIL       = TTL_SEMI_STATIC_MEDIUM
)

// ================== BOOKINGS MODULE ==================

const (
	CACHE_KEY_BOOKING_NOTIFIED = CACHE_PREFIX + ":bookings:notified:uuid:" // + booking-id
)

// ================== HELPER FUNCTIONS ==================

// BuildEventDetailKey -> "eventbook:events:detail:uuid:<event-id>"
func BuildEventDetailKey(eventID string) string {
	return CACHE_KEY_EVENT_DETAIL + eventID
}

func BuildBookingNotifiedKey(bookingID string) string {
	return CACHE_KEY_BOOKING_NOTIFIED + bookingID
}

// EventKeys lists every cached key that must be dropped when the inventory
// or content of an event changes.
func EventKeys(eventID string) []string {
	return []string{BuildEventDetailKey(eventID)}
}
