package events

import (
	"errors"
	"net/http"

	"eventbook/internal/shared/middleware"
	"eventbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateEvent(c *gin.Context)
	GetEvent(c *gin.Context)
	UpdateEvent(c *gin.Context)
	DeleteEvent(c *gin.Context)
	GetAllEvents(c *gin.Context)
	GetMyEvents(c *gin.Context)
	GetEventPayments(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// respondError maps catalog errors onto HTTP statuses.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrEventNotFound):
		response.RespondJSON(c, response.StatusError, http.StatusNotFound, "Event not found", nil, nil)
	case errors.Is(err, ErrNotEventOwner):
		response.RespondJSON(c, response.StatusError, http.StatusForbidden, "You can only manage your own events", nil, nil)
	case errors.Is(err, ErrEventHasBookings), errors.Is(err, ErrPoolsLocked):
		response.RespondJSON(c, response.StatusError, http.StatusConflict, err.Error(), nil, nil)
	case IsClientError(err):
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, err.Error(), nil, nil)
	default:
		response.RespondJSON(c, response.StatusError, http.StatusInternalServerError, fallback, nil, nil)
	}
}

func eventIDParam(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return uuid.Nil, false
	}
	return eventID, true
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.RespondJSON(c, response.StatusError, http.StatusUnauthorized, "User not authenticated", nil, nil)
	}
	return userID, ok
}

func (ctrl *controller) CreateEvent(c *gin.Context) {
	organizerID, ok := currentUser(c)
	if !ok {
		return
	}
	if role, _ := middleware.CurrentRole(c); !role.CanOrganize() {
		response.RespondJSON(c, response.StatusError, http.StatusForbidden, "Only organizers can create events", nil, nil)
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	event, err := ctrl.service.CreateEvent(c.Request.Context(), organizerID, req)
	if err != nil {
		respondError(c, err, "Failed to create event")
		return
	}

	response.RespondJSON(c, response.StatusSuccess, http.StatusCreated, "Event created successfully", event, nil)
}

func (ctrl *controller) GetEvent(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	event, err := ctrl.service.GetEventByID(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err, "Failed to retrieve event")
		return
	}

	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Event retrieved successfully", event, nil)
}

func (ctrl *controller) UpdateEvent(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	event, err := ctrl.service.UpdateEvent(c.Request.Context(), eventID, actorID, middleware.IsAdmin(c), req)
	if err != nil {
		respondError(c, err, "Failed to update event")
		return
	}

	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Event updated successfully", event, nil)
}

func (ctrl *controller) DeleteEvent(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := ctrl.service.DeleteEvent(c.Request.Context(), eventID, actorID, middleware.IsAdmin(c)); err != nil {
		respondError(c, err, "Failed to delete event")
		return
	}

	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Event deleted successfully", nil, nil)
}

func (ctrl *controller) GetAllEvents(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	page, err := ctrl.service.ListEvents(c.Request.Context(), query)
	if err != nil {
		respondError(c, err, "Failed to retrieve events")
		return
	}

	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Events retrieved successfully", page, nil)
}

func (ctrl *controller) GetMyEvents(c *gin.Context) {
	organizerID, ok := currentUser(c)
	if !ok {
		return
	}

	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	page, err := ctrl.service.GetOrganizerEvents(c.Request.Context(), organizerID, query)
	if err != nil {
		respondError(c, err, "Failed to retrieve events")
		return
	}

	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Events retrieved successfully", page, nil)
}

func (ctrl *controller) GetEventPayments(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	payments, err := ctrl.service.GetEventPayments(c.Request.Context(), eventID, actorID, middleware.IsAdmin(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve payments")
		return
	}

	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Payments retrieved successfully", payments, nil)
}
