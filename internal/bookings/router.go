package bookings

import (
	"eventbook/internal/shared/config"
	"eventbook/internal/shared/middleware"
	"eventbook/internal/users"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures the booking read routes. Bookings are created
// under /events/:eventId/bookings by the reservations package.
func SetupBookingRoutes(rg *gin.RouterGroup, cfg *config.Config, controller *Controller) {
	auth := middleware.JWTAuthWithConfig(cfg)
	anyRole := middleware.RequireRoles(users.RoleUser, users.RoleOrganizer, users.RoleAdmin)

	bookings := rg.Group("/bookings")
	bookings.Use(auth, anyRole)
	{
		bookings.GET("/:id", controller.GetBooking) // GET /api/v1/bookings/:id
	}

	userRoutes := rg.Group("/users")
	userRoutes.Use(auth, anyRole)
	{
		userRoutes.GET("/bookings", controller.GetUserBookings) // GET /api/v1/users/bookings?page=1&limit=10
	}
}
