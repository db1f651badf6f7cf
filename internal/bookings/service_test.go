package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	bookings []Booking
}

func (f *fakeRepo) Append(_ context.Context, b *Booking) error {
	f.bookings = append(f.bookings, *b)
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	for i := range f.bookings {
		if f.bookings[i].ID == id {
			b := f.bookings[i]
			return &b, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (f *fakeRepo) FindByIdempotencyKey(_ context.Context, key string) (*Booking, error) {
	for i := range f.bookings {
		if k := f.bookings[i].IdempotencyKey; k != nil && *k == key {
			b := f.bookings[i]
			return &b, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListByBuyer(_ context.Context, buyerID uuid.UUID, q ListQuery) ([]Booking, int64, error) {
	var matched []Booking
	for _, b := range f.bookings {
		if b.BuyerID == buyerID && (q.Status == "" || string(b.Status) == q.Status) {
			matched = append(matched, b)
		}
	}
	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		return nil, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]Booking, error) {
	var out []Booking
	for _, b := range f.bookings {
		if b.EventID == eventID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	list, _ := f.ListByEvent(ctx, eventID)
	return int64(len(list)), nil
}

func (f *fakeRepo) WithTx(*gorm.DB) Repository { return f }

func newBooking(buyer, event uuid.UUID, qty int) Booking {
	return Booking{
		ID:         uuid.New(),
		BookingRef: NewBookingRef(time.Now()),
		EventID:    event,
		BuyerID:    buyer,
		TicketType: "GA",
		Quantity:   qty,
		UnitPrice:  50,
		TotalPrice: float64(qty) * 50,
		Status:     StatusConfirmed,
	}
}

func TestService_GetBooking(t *testing.T) {
	buyer, other, event := uuid.New(), uuid.New(), uuid.New()
	b := newBooking(buyer, event, 2)
	svc := NewService(&fakeRepo{bookings: []Booking{b}})
	ctx := context.Background()

	t.Run("owner can read", func(t *testing.T) {
		got, err := svc.GetBooking(ctx, b.ID, buyer, false)
		require.NoError(t, err)
		assert.Equal(t, b.BookingRef, got.BookingRef)
		assert.Equal(t, 100.0, got.TotalPrice)
	})

	t.Run("other buyer is refused", func(t *testing.T) {
		_, err := svc.GetBooking(ctx, b.ID, other, false)
		assert.ErrorIs(t, err, ErrNotBookingOwner)
	})

	t.Run("admin can read any booking", func(t *testing.T) {
		_, err := svc.GetBooking(ctx, b.ID, other, true)
		assert.NoError(t, err)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := svc.GetBooking(ctx, uuid.New(), buyer, true)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestService_GetUserBookingsPaginates(t *testing.T) {
	buyer, event := uuid.New(), uuid.New()
	repo := &fakeRepo{}
	for i := 0; i < 25; i++ {
		repo.bookings = append(repo.bookings, newBooking(buyer, event, 1))
	}
	repo.bookings = append(repo.bookings, newBooking(uuid.New(), event, 1))
	svc := NewService(repo)

	page, err := svc.GetUserBookings(context.Background(), buyer, ListQuery{Page: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(25), page.TotalCount)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Bookings, 5)
}

func TestNewBookingRef(t *testing.T) {
	ref := NewBookingRef(time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC))

	assert.Regexp(t, `^EVT-20250309-[A-Z2-9]{6}$`, ref)
	assert.NotEqual(t, ref, NewBookingRef(time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)))
}

func TestCalculateTotalPages(t *testing.T) {
	assert.Equal(t, 0, CalculateTotalPages(0, 10))
	assert.Equal(t, 1, CalculateTotalPages(10, 10))
	assert.Equal(t, 2, CalculateTotalPages(11, 10))
	assert.Equal(t, 0, CalculateTotalPages(5, 0))
}
