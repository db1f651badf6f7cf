package events

import "time"

type TicketTypeInput struct {
	Name     string  `json:"name" binding:"required,max=100"`
	Price    float64 `json:"price" binding:"gte=0"`
	Quantity int     `json:"quantity" binding:"gte=0"`
}

type CreateEventRequest struct {
	Title           string            `json:"title" binding:"required,max=255"`
	Description     string            `json:"description" binding:"required"`
	Category        Category          `json:"category" binding:"required"`
	StartDateTime   time.Time         `json:"start_date_time" binding:"required"`
	EndDateTime     time.Time         `json:"end_date_time" binding:"required"`
	CoverImage      string            `json:"cover_image" binding:"omitempty,url,max=500"`
	VenueName       string            `json:"venue_name" binding:"max=255"`
	IsFreeEvent     bool              `json:"is_free_event"`
	Visibility      Visibility        `json:"visibility" binding:"omitempty,oneof=public private"`
	IsOnlineEvent   bool              `json:"is_online_event"`
	OnlineEventLink string            `json:"online_event_link" binding:"omitempty,url,max=500"`
	TicketTypes     []TicketTypeInput `json:"ticket_types" binding:"omitempty,dive"`
}

// UpdateEventRequest is a partial update: nil fields are left unchanged.
type UpdateEventRequest struct {
	Title           *string            `json:"title" binding:"omitempty,max=255"`
	Description     *string            `json:"description"`
	Category        *Category          `json:"category"`
	StartDateTime   *time.Time         `json:"start_date_time"`
	EndDateTime     *time.Time         `json:"end_date_time"`
	CoverImage      *string            `json:"cover_image" binding:"omitempty,max=500"`
	VenueName       *string            `json:"venue_name" binding:"omitempty,max=255"`
	IsFreeEvent     *bool              `json:"is_free_event"`
	Visibility      *Visibility        `json:"visibility" binding:"omitempty,oneof=public private"`
	IsOnlineEvent   *bool              `json:"is_online_event"`
	OnlineEventLink *string            `json:"online_event_link" binding:"omitempty,max=500"`
	TicketTypes     *[]TicketTypeInput `json:"ticket_types" binding:"omitempty,dive"`
}

// ListQuery holds the listing parameters. SortBy is "field:asc" or
// "field:desc"; unknown fields fall back to created_at desc.
type ListQuery struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit" binding:"omitempty,max=100"`
	SortBy   string `form:"sortBy"`
	Category string `form:"category"`
	Q        string `form:"q"`
}
