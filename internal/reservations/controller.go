package reservations

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"eventbook/internal/bookings"
	"eventbook/internal/shared/middleware"
	"eventbook/internal/shared/utils/response"
	"eventbook/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
	retryAfterSeconds    = 1
)

type ReserveRequest struct {
	TicketType string `json:"ticket_type" binding:"required,max=100"`
	// Quantity is range checked by the engine so that it reports InvalidQuantity
	Quantity int `json:"quantity"`
}

type ReserveResponse struct {
	Booking  bookings.BookingResponse `json:"booking"`
	Replayed bool                     `json:"replayed"`
}

type Controller struct {
	engine *Engine
}

func NewController(engine *Engine) *Controller {
	return &Controller{engine: engine}
}

// CreateBooking handles POST /events/:eventId/bookings
//
//	@Summary	Reserve tickets
//	@Tags		bookings
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		eventId			path		string			true	"Event ID"
//	@Param		Idempotency-Key	header		string			false	"Client supplied idempotency key"
//	@Param		request			body		ReserveRequest	true	"Ticket type and quantity"
//	@Success	201				{object}	response.StandardApiResponse{data=ReserveResponse}
//	@Success	200				{object}	response.StandardApiResponse{data=ReserveResponse}	"Replayed"
//	@Failure	409				{object}	response.StandardApiResponse
//	@Router		/events/{eventId}/bookings [post]
func (ctrl *Controller) CreateBooking(c *gin.Context) {
	buyerID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.RespondJSON(c, response.StatusError, http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	// Parse request body
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 1.5, "two" or an out of range number is still a bad quantity
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "quantity" {
			respondError(c, ErrInvalidQuantity)
			return
		}
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	key := c.GetHeader(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Idempotency-Key is too long", nil, nil)
		return
	}

	// An id that cannot name any event is reported the same way as a missing one
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		eventID = uuid.Nil
	}

	// Reserve
	result, err := ctrl.engine.Reserve(c.Request.Context(), Request{
		EventID:        eventID,
		TicketType:     req.TicketType,
		BuyerID:        buyerID,
		Quantity:       req.Quantity,
		IdempotencyKey: key,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	body := ReserveResponse{Booking: result.Booking.ToResponse(), Replayed: result.Replayed}
	if result.Replayed {
		response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Booking already created for this Idempotency-Key", body, nil)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusCreated, "Booking created successfully", body, nil)
}

type errorDetail struct {
	Kind Kind `json:"kind"`
}

// StatusFor maps a reservation error to its HTTP status and client message.
func StatusFor(err error) (int, string) {
	switch KindOf(err) {
	case KindInvalidQuantity:
		return http.StatusBadRequest, "Quantity must be at least 1"
	case KindEventNotFound:
		return http.StatusNotFound, "Event not found"
	case KindInvalidTicketType:
		return http.StatusBadRequest, "Ticket type does not exist for this event"
	case KindInsufficientInventory:
		return http.StatusConflict, "Not enough tickets available"
	case KindReservationConflict:
		return http.StatusConflict, "Too many concurrent requests for this ticket type, please retry"
	case KindIdempotencyConflict:
		return http.StatusUnprocessableEntity, "Idempotency-Key was already used for a different request"
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable, "Booking service temporarily unavailable, please retry"
	case KindCancelled:
		return http.StatusRequestTimeout, "Request was cancelled before the booking was made"
	default:
		return http.StatusInternalServerError, "Failed to create booking"
	}
}

func respondError(c *gin.Context, err error) {
	status, message := StatusFor(err)
	kind := KindOf(err)
	if kind == KindReservationConflict || kind == KindStoreUnavailable {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		logger.GetDefault().LogHTTPError(c, err, status)
	}
	response.RespondJSON(c, response.StatusError, status, message, nil, errorDetail{Kind: kind})
}
