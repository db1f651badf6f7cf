package reservations

import (
	"eventbook/internal/shared/config"
	"eventbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupReservationRoutes registers the booking creation endpoint. Any
// authenticated user may book; roles are not inspected past authentication.
func SetupReservationRoutes(rg *gin.RouterGroup, cfg *config.Config, controller *Controller, extra ...gin.HandlerFunc) {
	handlers := append([]gin.HandlerFunc{middleware.JWTAuthWithConfig(cfg)}, extra...)
	handlers = append(handlers, controller.CreateBooking)

	rg.POST("/events/:eventId/bookings", handlers...) // POST /api/v1/events/:eventId/bookings
}
