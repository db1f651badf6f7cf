package reservations

import (
	"context"
	"errors"
)

var (
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrEventNotFound         = errors.New("event not found")
	ErrInvalidTicketType     = errors.New("invalid ticket type")
	ErrInsufficientInventory = errors.New("not enough tickets available")
	ErrReservationConflict   = errors.New("reservation conflict, retry later")
	ErrStoreUnavailable      = errors.New("reservation store unavailable")
	ErrInternalInconsistency = errors.New("internal inconsistency")
	ErrIdempotencyConflict   = errors.New("idempotency key reused with a different request")
	ErrAbandoned             = errors.New("reservation abandoned")
)

// errVersionConflict is returned by a unit of work when an optimistic
// decrement lost the race. It never leaves the engine.
var errVersionConflict = errors.New("pool version changed")

// Kind is the stable classification of a reservation outcome.
type Kind string

const (
	KindNone                  Kind = ""
	KindInvalidQuantity       Kind = "INVALID_QUANTITY"
	KindEventNotFound         Kind = "EVENT_NOT_FOUND"
	KindInvalidTicketType     Kind = "INVALID_TICKET_TYPE"
	KindInsufficientInventory Kind = "INSUFFICIENT_INVENTORY"
	KindReservationConflict   Kind = "RESERVATION_CONFLICT"
	KindIdempotencyConflict   Kind = "IDEMPOTENCY_CONFLICT"
	KindStoreUnavailable      Kind = "STORE_UNAVAILABLE"
	KindCancelled             Kind = "CANCELLED"
	KindInternalInconsistency Kind = "INTERNAL_INCONSISTENCY"
)

// KindOf classifies err. Unknown errors are InternalInconsistency.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, ErrEventNotFound):
		return KindEventNotFound
	case errors.Is(err, ErrInvalidTicketType):
		return KindInvalidTicketType
	case errors.Is(err, ErrInsufficientInventory):
		return KindInsufficientInventory
	case errors.Is(err, ErrReservationConflict):
		return KindReservationConflict
	case errors.Is(err, ErrIdempotencyConflict):
		return KindIdempotencyConflict
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrAbandoned), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternalInconsistency
	}
}

// IsRejection reports outcomes caused by the request itself rather than by
// the system.
func IsRejection(err error) bool {
	switch KindOf(err) {
	case KindInvalidQuantity, KindEventNotFound, KindInvalidTicketType,
		KindInsufficientInventory, KindIdempotencyConflict:
		return true
	}
	return false
}
