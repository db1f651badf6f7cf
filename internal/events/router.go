package events

import (
	"eventbook/internal/shared/config"
	"eventbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, cfg *config.Config, controller Controller) {
	auth := middleware.JWTAuthWithConfig(cfg)

	// Public routes - anyone can browse public events
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("", controller.GetAllEvents)      // GET /api/v1/events?page=1&limit=10&sortBy=createdAt:desc&category=music&q=jazz
		publicEvents.GET("/:eventId", controller.GetEvent) // GET /api/v1/events/:eventId
	}

	// Organizer routes - ownership is checked per event, admins may act on any
	organizerEvents := router.Group("/events")
	organizerEvents.Use(auth)
	{
		organizerEvents.GET("/my-events", controller.GetMyEvents)              // GET /api/v1/events/my-events
		organizerEvents.POST("", controller.CreateEvent)                       // POST /api/v1/events
		organizerEvents.PATCH("/:eventId", controller.UpdateEvent)             // PATCH /api/v1/events/:eventId
		organizerEvents.DELETE("/:eventId", controller.DeleteEvent)            // DELETE /api/v1/events/:eventId
		organizerEvents.GET("/:eventId/payments", controller.GetEventPayments) // GET /api/v1/events/:eventId/payments
	}
}
