package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventbook/internal/bookings"
	"eventbook/internal/shared/config"
	"eventbook/internal/shared/constants"
	"eventbook/pkg/cache"
	"eventbook/pkg/logger"

	"github.com/google/uuid"
)

// BookingLedger is the read side of the booking ledger the catalog needs.
type BookingLedger interface {
	GetEventBookings(ctx context.Context, eventID uuid.UUID) ([]bookings.Booking, error)
	CountEventBookings(ctx context.Context, eventID uuid.UUID) (int64, error)
}

type Service interface {
	CreateEvent(ctx context.Context, organizerID uuid.UUID, req CreateEventRequest) (*Event, error)
	GetEventByID(ctx context.Context, eventID uuid.UUID) (*Event, error)
	UpdateEvent(ctx context.Context, eventID, actorID uuid.UUID, isAdmin bool, req UpdateEventRequest) (*Event, error)
	DeleteEvent(ctx context.Context, eventID, actorID uuid.UUID, isAdmin bool) error
	ListEvents(ctx context.Context, query ListQuery) (*EventPage, error)
	GetOrganizerEvents(ctx context.Context, organizerID uuid.UUID, query ListQuery) (*EventPage, error)
	GetEventPayments(ctx context.Context, eventID, actorID uuid.UUID, isAdmin bool) (*PaymentsResponse, error)
}

type service struct {
	repo   Repository
	ledger BookingLedger
	cache  cache.Service
	cfg    config.EventsConfig
	log    *logger.Logger
}

// NewService builds the catalog service. cacheService may be nil when Redis
// is disabled.
func NewService(repo Repository, ledger BookingLedger, cacheService cache.Service, cfg config.EventsConfig) Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	if cfg.FreePassCapacity <= 0 {
		cfg.FreePassCapacity = 1000
	}
	return &service{repo: repo, ledger: ledger, cache: cacheService, cfg: cfg, log: logger.GetDefault()}
}

func (s *service) CreateEvent(ctx context.Context, organizerID uuid.UUID, req CreateEventRequest) (*Event, error) {
	// Validate request
	if !req.Category.IsValid() {
		return nil, ErrInvalidCategory
	}
	if !req.EndDateTime.After(req.StartDateTime) {
		return nil, ErrInvalidSchedule
	}
	if req.IsOnlineEvent && strings.TrimSpace(req.OnlineEventLink) == "" {
		return nil, ErrMissingLink
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = VisibilityPublic
	}

	// Free events get a single implicit pass pool
	var pools []TicketPool
	if req.IsFreeEvent {
		pools = FreePass(s.cfg.FreePassCapacity)
	} else {
		var err error
		if pools, err = buildPools(req.TicketTypes); err != nil {
			return nil, err
		}
	}

	// Create event model
	event := &Event{
		OrganizerID:   organizerID,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Category:      req.Category,
		StartDateTime: req.StartDateTime.UTC(),
		EndDateTime:   req.EndDateTime.UTC(),
		CoverImage:    req.CoverImage,
		VenueName:     req.VenueName,
		IsFreeEvent:   req.IsFreeEvent,
		Visibility:    visibility,
		IsOnlineEvent: req.IsOnlineEvent,
		TicketPools:   pools,
	}
	if req.IsOnlineEvent {
		event.OnlineEventLink = req.OnlineEventLink
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	s.log.LogEventCreated(ctx, event.ID.String(), organizerID.String())
	return event, nil
}

// buildPools turns request ticket types into fresh pools, in request order.
func buildPools(inputs []TicketTypeInput) ([]TicketPool, error) {
	if len(inputs) == 0 {
		return nil, ErrNoTicketTypes
	}

	seen := make(map[string]struct{}, len(inputs))
	pools := make([]TicketPool, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" || in.Price < 0 || in.Quantity < 0 {
			return nil, ErrInvalidPool
		}
		if _, dup := seen[name]; dup {
			return nil, ErrDuplicatePool
		}
		seen[name] = struct{}{}
		pools = append(pools, NewPool(i, name, in.Price, in.Quantity))
	}
	return pools, nil
}

// GetEventByID is cache-aside on the event detail key. The reservation engine
// drops that key after every committed booking.
func (s *service) GetEventByID(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	if s.cache == nil {
		return s.repo.GetByID(ctx, eventID)
	}

	var event Event
	err := s.cache.GetOrSet(ctx, constants.BuildEventDetailKey(eventID.String()), constants.TTL_EVENT_DETAIL,
		func() (interface{}, error) { return s.repo.GetByID(ctx, eventID) }, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *service) UpdateEvent(ctx context.Context, eventID, actorID uuid.UUID, isAdmin bool, req UpdateEventRequest) (*Event, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && event.OrganizerID != actorID {
		return nil, ErrNotEventOwner
	}

	applyScalarUpdates(event, req)

	if !event.Category.IsValid() {
		return nil, ErrInvalidCategory
	}
	if !event.EndDateTime.After(event.StartDateTime) {
		return nil, ErrInvalidSchedule
	}
	if event.IsOnlineEvent && event.OnlineEventLink == "" {
		return nil, ErrMissingLink
	}

	replacePools, err := s.resolvePools(ctx, event, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, event, replacePools); err != nil {
		return nil, err
	}
	s.invalidate(ctx, eventID)
	return event, nil
}

func applyScalarUpdates(event *Event, req UpdateEventRequest) {
	if req.Title != nil {
		event.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Category != nil {
		event.Category = *req.Category
	}
	if req.StartDateTime != nil {
		event.StartDateTime = req.StartDateTime.UTC()
	}
	if req.EndDateTime != nil {
		event.EndDateTime = req.EndDateTime.UTC()
	}
	if req.CoverImage != nil {
		event.CoverImage = *req.CoverImage
	}
	if req.VenueName != nil {
		event.VenueName = *req.VenueName
	}
	if req.Visibility != nil {
		event.Visibility = *req.Visibility
	}
	if req.IsOnlineEvent != nil {
		event.IsOnlineEvent = *req.IsOnlineEvent
	}
	if req.OnlineEventLink != nil {
		event.OnlineEventLink = *req.OnlineEventLink
	}
	if !event.IsOnlineEvent {
		event.OnlineEventLink = ""
	}
}

// resolvePools applies the free-event rule and any new ticket types. Pools
// may only be replaced while no booking references them, otherwise the
// remaining quantities would be reset behind the reservation engine.
func (s *service) resolvePools(ctx context.Context, event *Event, req UpdateEventRequest) (bool, error) {
	var pools []TicketPool
	switch {
	case req.IsFreeEvent != nil && *req.IsFreeEvent:
		if event.IsFreeEvent {
			return false, nil
		}
		pools = FreePass(s.cfg.FreePassCapacity)
	case req.TicketTypes != nil:
		if event.IsFreeEvent && (req.IsFreeEvent == nil || *req.IsFreeEvent) {
			return false, nil
		}
		var err error
		if pools, err = buildPools(*req.TicketTypes); err != nil {
			return false, err
		}
	case req.IsFreeEvent != nil && !*req.IsFreeEvent && event.IsFreeEvent:
		return false, ErrNoTicketTypes
	default:
		return false, nil
	}

	// Early answer; the repository re-checks under the pool lock
	count, err := s.ledger.CountEventBookings(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count bookings: %w", err)
	}
	if count > 0 {
		return false, ErrPoolsLocked
	}

	if req.IsFreeEvent != nil {
		event.IsFreeEvent = *req.IsFreeEvent
	}
	for i := range pools {
		pools[i].EventID = event.ID
	}
	event.TicketPools = pools
	return true, nil
}

func (s *service) DeleteEvent(ctx context.Context, eventID, actorID uuid.UUID, isAdmin bool) error {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !isAdmin && event.OrganizerID != actorID {
		return ErrNotEventOwner
	}

	count, err := s.ledger.CountEventBookings(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}
	if count > 0 {
		return ErrEventHasBookings
	}

	// Delete event and pools
	if err := s.repo.Delete(ctx, eventID); err != nil {
		return err
	}
	s.invalidate(ctx, eventID)
	return nil
}

func (s *service) ListEvents(ctx context.Context, query ListQuery) (*EventPage, error) {
	filter := s.filterFor(query)
	filter.PublicOnly = true
	if query.Category != "" {
		category := Category(strings.ToLower(query.Category))
		if !category.IsValid() {
			return nil, ErrInvalidCategory
		}
		filter.Category = category
	}
	filter.Search = strings.TrimSpace(query.Q)
	return s.page(ctx, filter)
}

func (s *service) GetOrganizerEvents(ctx context.Context, organizerID uuid.UUID, query ListQuery) (*EventPage, error) {
	filter := s.filterFor(query)
	filter.OrganizerID = &organizerID
	return s.page(ctx, filter)
}

func (s *service) page(ctx context.Context, filter ListFilter) (*EventPage, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if list == nil {
		list = []Event{}
	}
	return &EventPage{
		Results: list,
		Page:    filter.Page,
		Limit:   filter.Limit,
		Total:   total,
		Pages:   bookings.CalculateTotalPages(total, filter.Limit),
	}, nil
}

func (s *service) GetEventPayments(ctx context.Context, eventID, actorID uuid.UUID, isAdmin bool) (*PaymentsResponse, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && event.OrganizerID != actorID {
		return nil, ErrNotEventOwner
	}

	list, err := s.ledger.GetEventBookings(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}

	resp := &PaymentsResponse{EventID: eventID.String(), Bookings: bookings.ToResponses(list)}
	for _, b := range list {
		resp.TicketsSold += b.Quantity
		resp.TotalRevenue += b.TotalPrice
	}
	return resp, nil
}

func (s *service) invalidate(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, constants.EventKeys(eventID.String())...); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate event cache", "event_id", eventID.String())
	}
}

var sortColumns = map[string]string{
	"createdAt":       "created_at",
	"created_at":      "created_at",
	"startDateTime":   "start_date_time",
	"start_date_time": "start_date_time",
	"endDateTime":     "end_date_time",
	"end_date_time":   "end_date_time",
	"title":           "title",
}

// parseSort maps "field:order" onto a whitelisted ORDER BY clause.
func parseSort(sortBy string) string {
	field, order, _ := strings.Cut(sortBy, ":")
	column, ok := sortColumns[field]
	if !ok {
		return "created_at DESC"
	}
	if strings.EqualFold(order, "desc") {
		return column + " DESC"
	}
	return column + " ASC"
}

func (s *service) filterFor(query ListQuery) ListFilter {
	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.cfg.DefaultPageSize
	}
	return ListFilter{Page: page, Limit: limit, OrderBy: parseSort(query.SortBy)}
}

// IsClientError reports catalog errors caused by the request.
func IsClientError(err error) bool {
	for _, target := range []error{ErrInvalidSchedule, ErrNoTicketTypes, ErrDuplicatePool,
		ErrInvalidCategory, ErrInvalidPool, ErrMissingLink} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
