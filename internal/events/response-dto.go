package events

import "eventbook/internal/bookings"

type EventPage struct {
	Results []Event `json:"results"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
	Total   int64   `json:"total"`
	Pages   int     `json:"pages"`
}

type PaymentsResponse struct {
	EventID      string                     `json:"event_id"`
	Bookings     []bookings.BookingResponse `json:"bookings"`
	TicketsSold  int                        `json:"tickets_sold"`
	TotalRevenue float64                    `json:"total_revenue"`
}
