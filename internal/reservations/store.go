package reservations

import (
	"context"

	"eventbook/internal/bookings"
	"eventbook/internal/events"

	"github.com/google/uuid"
)

// UnitOfWork is the view of the catalog and the ledger inside one atomic
// transaction. Nothing written through it is visible to other units of work
// until the surrounding Store.Do returns nil.
type UnitOfWork interface {
	// GetEvent returns ErrEventNotFound when the event does not exist.
	// Ticket pools are not loaded.
	GetEvent(ctx context.Context, eventID uuid.UUID) (*events.Event, error)

	// LoadPool reads one pool by name, or returns nil, nil when the event has
	// no such pool. With forUpdate the pool row stays exclusively locked until
	// the unit of work ends.
	LoadPool(ctx context.Context, eventID uuid.UUID, name string, forUpdate bool) (*events.TicketPool, error)

	// DecrementPool subtracts qty from the pool if its version still equals
	// expectedVersion and enough inventory remains. It bumps the version and
	// reports false when either condition no longer holds.
	DecrementPool(ctx context.Context, poolID uuid.UUID, qty int, expectedVersion int64) (bool, error)

	// AppendBooking returns bookings.ErrDuplicateIdempotencyKey when another
	// booking already owns the key.
	AppendBooking(ctx context.Context, booking *bookings.Booking) error

	// FindBookingByKey returns nil, nil when no booking carries the key.
	FindBookingByKey(ctx context.Context, key string) (*bookings.Booking, error)
}

// Store runs units of work. If fn returns an error every write made through
// the UnitOfWork is discarded.
type Store interface {
	Do(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
