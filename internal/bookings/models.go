package bookings

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrNotBookingOwner = errors.New("not the owner of this booking")
)

// Booking is an append-only ledger record of one successful reservation.
type Booking struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingRef     string    `gorm:"size:32;uniqueIndex;not null" json:"booking_ref"`
	EventID        uuid.UUID `gorm:"type:uuid;index;not null" json:"event_id"`
	BuyerID        uuid.UUID `gorm:"type:uuid;index;not null" json:"buyer_id"`
	TicketType     string    `gorm:"size:100;not null" json:"ticket_type"`
	Quantity       int       `gorm:"not null;check:chk_booking_quantity,quantity >= 1" json:"quantity"`
	UnitPrice      float64   `gorm:"not null" json:"unit_price"`
	TotalPrice     float64   `gorm:"not null;check:chk_booking_total,total_price >= 0" json:"total_price"`
	Status         Status    `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`
	IdempotencyKey *string   `gorm:"size:255;uniqueIndex" json:"-"`
	RequestHash    string    `gorm:"size:64" json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

const refAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingRef returns a human friendly reference like EVT-20250101-K7Q2ZD.
func NewBookingRef(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(refAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(int64(uuid.New()[i] % byte(len(refAlphabet))))
		}
		suffix[i] = refAlphabet[n.Int64()]
	}
	return "EVT-" + now.UTC().Format("20060102") + "-" + string(suffix)
}
