package bookings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service exposes read access to the booking ledger. Bookings are created
// only by the reservation engine.
type Service interface {
	GetBooking(ctx context.Context, bookingID, requesterID uuid.UUID, isAdmin bool) (*BookingResponse, error)
	GetUserBookings(ctx context.Context, buyerID uuid.UUID, query ListQuery) (*PaginatedBookings, error)
	GetEventBookings(ctx context.Context, eventID uuid.UUID) ([]Booking, error)
	CountEventBookings(ctx context.Context, eventID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetBooking(ctx context.Context, bookingID, requesterID uuid.UUID, isAdmin bool) (*BookingResponse, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && booking.BuyerID != requesterID {
		return nil, ErrNotBookingOwner
	}
	resp := booking.ToResponse()
	return &resp, nil
}

func (s *service) GetUserBookings(ctx context.Context, buyerID uuid.UUID, query ListQuery) (*PaginatedBookings, error) {
	query.normalize()

	list, total, err := s.repo.ListByBuyer(ctx, buyerID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return &PaginatedBookings{
		Bookings:   ToResponses(list),
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: CalculateTotalPages(total, query.Limit),
	}, nil
}

func (s *service) GetEventBookings(ctx context.Context, eventID uuid.UUID) ([]Booking, error) {
	return s.repo.ListByEvent(ctx, eventID)
}

func (s *service) CountEventBookings(ctx context.Context, eventID uuid.UUID) (int64, error) {
	return s.repo.CountByEvent(ctx, eventID)
}
