package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FreePassName is the single pool every free event carries.
const FreePassName = "Free Pass"

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrNotEventOwner    = errors.New("not the owner of this event")
	ErrEventHasBookings = errors.New("event has bookings and cannot be deleted")
	ErrPoolsLocked      = errors.New("ticket types cannot be changed once bookings exist")
	ErrInvalidSchedule  = errors.New("end date must be after start date")
	ErrNoTicketTypes    = errors.New("at least one ticket type is required")
	ErrDuplicatePool    = errors.New("ticket type names must be unique within an event")
	ErrInvalidCategory  = errors.New("invalid event category")
	ErrInvalidPool      = errors.New("ticket type needs a name, a price >= 0 and a quantity >= 0")
	ErrMissingLink      = errors.New("online events need an online event link")
)

type Event struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizerID     uuid.UUID  `json:"organizer_id" gorm:"type:uuid;not null;index"`
	Title           string     `json:"title" gorm:"not null;size:255"`
	Description     string     `json:"description" gorm:"type:text;not null"`
	Category        Category   `json:"category" gorm:"type:varchar(20);not null;index"`
	StartDateTime   time.Time  `json:"start_date_time" gorm:"not null"`
	EndDateTime     time.Time  `json:"end_date_time" gorm:"not null"`
	CoverImage      string     `json:"cover_image" gorm:"size:500"`
	VenueName       string     `json:"venue_name" gorm:"size:255"`
	IsFreeEvent     bool       `json:"is_free_event" gorm:"not null;default:false"`
	Visibility      Visibility `json:"visibility" gorm:"type:varchar(10);not null;default:'public';index"`
	IsOnlineEvent   bool       `json:"is_online_event" gorm:"not null;default:false"`
	OnlineEventLink string     `json:"online_event_link,omitempty" gorm:"size:500"`

	TicketPools []TicketPool `json:"ticket_types" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE;"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TicketPool is one ticket type of an event together with its live inventory.
// Remaining and Version are only ever changed by the reservation engine.
type TicketPool struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	EventID           uuid.UUID `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_pool_event_name,priority:1"`
	Position          int       `json:"position" gorm:"not null"`
	Name              string    `json:"name" gorm:"not null;size:100;uniqueIndex:idx_pool_event_name,priority:2"`
	UnitPrice         float64   `json:"price" gorm:"not null;check:chk_pool_price,unit_price >= 0"`
	Capacity          int       `json:"quantity" gorm:"not null;check:chk_pool_capacity,capacity >= 0"`
	RemainingQuantity int       `json:"remaining_quantity" gorm:"not null;check:chk_pool_remaining,remaining_quantity >= 0"`
	Version           int64     `json:"-" gorm:"not null;default:0"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (p *TicketPool) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

func (TicketPool) TableName() string {
	return "ticket_pools"
}

// Pool returns the pool with the given name, or nil.
func (e *Event) Pool(name string) *TicketPool {
	for i := range e.TicketPools {
		if e.TicketPools[i].Name == name {
			return &e.TicketPools[i]
		}
	}
	return nil
}

func (e *Event) IsPublic() bool {
	return e.Visibility == VisibilityPublic
}

// Sold is the number of tickets reserved from this pool so far.
func (p *TicketPool) Sold() int {
	return p.Capacity - p.RemainingQuantity
}

// NewPool builds a fresh pool whose remaining quantity equals its capacity.
func NewPool(position int, name string, price float64, capacity int) TicketPool {
	return TicketPool{
		ID:                uuid.New(),
		Position:          position,
		Name:              name,
		UnitPrice:         price,
		Capacity:          capacity,
		RemainingQuantity: capacity,
	}
}

// FreePass is the pool list assigned to free events.
func FreePass(capacity int) []TicketPool {
	return []TicketPool{NewPool(0, FreePassName, 0, capacity)}
}
