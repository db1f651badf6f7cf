package reservations

import (
	"context"
	"errors"
	"fmt"

	"eventbook/internal/bookings"
	"eventbook/internal/events"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore runs units of work as Postgres transactions. Pessimistic callers
// lock a single ticket_pools row, so pools of the same event never block one
// another.
type GormStore struct {
	db     *gorm.DB
	ledger bookings.Repository
}

func NewGormStore(db *gorm.DB, ledger bookings.Repository) *GormStore {
	return &GormStore{db: db, ledger: ledger}
}

func (s *GormStore) Do(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormUnitOfWork{tx: tx, ledger: s.ledger.WithTx(tx)})
	})
}

type gormUnitOfWork struct {
	tx     *gorm.DB
	ledger bookings.Repository
}

func (u *gormUnitOfWork) GetEvent(ctx context.Context, eventID uuid.UUID) (*events.Event, error) {
	var event events.Event
	err := u.tx.WithContext(ctx).Where("id = ?", eventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return &event, nil
}

func (u *gormUnitOfWork) LoadPool(ctx context.Context, eventID uuid.UUID, name string, forUpdate bool) (*events.TicketPool, error) {
	query := u.tx.WithContext(ctx).Where("event_id = ? AND name = ?", eventID, name)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var pools []events.TicketPool
	if err := query.Limit(1).Find(&pools).Error; err != nil {
		return nil, fmt.Errorf("failed to load ticket pool: %w", err)
	}
	if len(pools) == 0 {
		return nil, nil
	}
	return &pools[0], nil
}

func (u *gormUnitOfWork) DecrementPool(ctx context.Context, poolID uuid.UUID, qty int, expectedVersion int64) (bool, error) {
	result := u.tx.WithContext(ctx).
		Model(&events.TicketPool{}).
		Where("id = ? AND version = ? AND remaining_quantity >= ?", poolID, expectedVersion, qty).
		Updates(map[string]interface{}{
			"remaining_quantity": gorm.Expr("remaining_quantity - ?", qty),
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to decrement ticket pool: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (u *gormUnitOfWork) AppendBooking(ctx context.Context, booking *bookings.Booking) error {
	return u.ledger.Append(ctx, booking)
}

func (u *gormUnitOfWork) FindBookingByKey(ctx context.Context, key string) (*bookings.Booking, error) {
	return u.ledger.FindByIdempotencyKey(ctx, key)
}
