package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventbook/internal/bookings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListFilter is a sanitized listing request. OrderBy must already be a
// whitelisted "column direction" pair.
type ListFilter struct {
	OrganizerID *uuid.UUID
	PublicOnly  bool
	Category    Category
	Search      string
	Page        int
	Limit       int
	OrderBy     string
}

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// Update saves the event's columns. When replacePools is set the existing
	// ticket pools are deleted and event.TicketPools inserted instead.
	Update(ctx context.Context, event *Event, replacePools bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]Event, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func orderedPools(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *repository) Create(ctx context.Context, event *Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).
		Preload("TicketPools", orderedPools).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) Update(ctx context.Context, event *Event, replacePools bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replacePools {
			// Hold the pools so no reservation can land between the count and the swap
			booked, err := lockAndCountBookings(tx, event.ID)
			if err != nil {
				return err
			}
			if booked > 0 {
				return ErrPoolsLocked
			}
		}

		if err := tx.Omit("TicketPools").Save(event).Error; err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		if !replacePools {
			return nil
		}

		if err := tx.Where("event_id = ?", event.ID).Delete(&TicketPool{}).Error; err != nil {
			return fmt.Errorf("failed to delete ticket pools: %w", err)
		}
		for i := range event.TicketPools {
			event.TicketPools[i].EventID = event.ID
		}
		if len(event.TicketPools) > 0 {
			if err := tx.Create(&event.TicketPools).Error; err != nil {
				return fmt.Errorf("failed to create ticket pools: %w", err)
			}
		}
		return nil
	})
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booked, err := lockAndCountBookings(tx, id)
		if err != nil {
			return err
		}
		if booked > 0 {
			return ErrEventHasBookings
		}

		if err := tx.Where("event_id = ?", id).Delete(&TicketPool{}).Error; err != nil {
			return fmt.Errorf("failed to delete ticket pools: %w", err)
		}

		result := tx.Where("id = ?", id).Delete(&Event{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete event: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrEventNotFound
		}
		return nil
	})
}

// lockAndCountBookings takes FOR UPDATE locks on the event's ticket pools,
// the same rows a reservation locks or version-bumps, and then counts the
// event's bookings. A reservation that committed first is counted; one that
// arrives later waits for this transaction.
func lockAndCountBookings(tx *gorm.DB, eventID uuid.UUID) (int64, error) {
	var pools []TicketPool
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ?", eventID).
		Find(&pools).Error; err != nil {
		return 0, fmt.Errorf("failed to lock ticket pools: %w", err)
	}

	var booked int64
	if err := tx.Model(&bookings.Booking{}).Where("event_id = ?", eventID).Count(&booked).Error; err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return booked, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Event, int64, error) {
	var events []Event
	var total int64

	query := r.db.WithContext(ctx).Model(&Event{})

	if filter.OrganizerID != nil {
		query = query.Where("organizer_id = ?", *filter.OrganizerID)
	}
	if filter.PublicOnly {
		query = query.Where("visibility = ?", VisibilityPublic)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		term := "%" + escapeLike(filter.Search) + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", term, term)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := query.
		Preload("TicketPools", orderedPools).
		Order(filter.OrderBy).
		Offset(offset).
		Limit(filter.Limit).
		Find(&events).Error

	return events, total, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
