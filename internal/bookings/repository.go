package bookings

import (
	"context"
	"errors"
	"fmt"
	"math"

	"eventbook/internal/shared/pgerrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateIdempotencyKey is returned by Append when another booking
// already owns the idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

const idempotencyIndex = "idx_bookings_idempotency_key"

// Repository is the booking ledger. Bookings are appended and read, never
// updated in place by the reservation path.
type Repository interface {
	Append(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Booking, error)

	ListByBuyer(ctx context.Context, buyerID uuid.UUID, query ListQuery) ([]Booking, int64, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Booking, error)
	CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)

	// WithTx returns a repository bound to an open transaction
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, booking *Booking) error {
	err := r.db.WithContext(ctx).Create(booking).Error
	if err != nil {
		if pgerrors.IsUniqueViolation(err, idempotencyIndex) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append booking: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// FindByIdempotencyKey returns nil, nil when no booking carries the key.
func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).Limit(1).Find(&booking).Error
	if err != nil {
		return nil, err
	}
	if booking.ID == uuid.Nil {
		return nil, nil
	}
	return &booking, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, query ListQuery) ([]Booking, int64, error) {
	var bookings []Booking
	var totalCount int64

	query.normalize()

	baseQuery := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("buyer_id = ?", buyerID)

	baseQuery = r.applyFilters(baseQuery, query)

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error

	return bookings, totalCount, err
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Find(&bookings).Error

	return bookings, err
}

func (r *repository) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count, err
}

// applyFilters applies query filters to the GORM query
func (r *repository) applyFilters(query *gorm.DB, filters ListQuery) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.EventID != "" {
		if eventID, err := uuid.Parse(filters.EventID); err == nil {
			query = query.Where("event_id = ?", eventID)
		}
	}

	return query
}

// CalculateTotalPages returns ceil(total/limit)
func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}
