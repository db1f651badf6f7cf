package bookings

import "time"

type BookingResponse struct {
	ID         string    `json:"id"`
	BookingRef string    `json:"booking_ref"`
	EventID    string    `json:"event_id"`
	BuyerID    string    `json:"buyer_id"`
	TicketType string    `json:"ticket_type"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	TotalPrice float64   `json:"total_price"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type PaginatedBookings struct {
	Bookings   []BookingResponse `json:"bookings"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

func (b *Booking) ToResponse() BookingResponse {
	return BookingResponse{
		ID:         b.ID.String(),
		BookingRef: b.BookingRef,
		EventID:    b.EventID.String(),
		BuyerID:    b.BuyerID.String(),
		TicketType: b.TicketType,
		Quantity:   b.Quantity,
		UnitPrice:  b.UnitPrice,
		TotalPrice: b.TotalPrice,
		Status:     b.Status,
		CreatedAt:  b.CreatedAt,
	}
}

func ToResponses(list []Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToResponse())
	}
	return out
}
