package auth

import (
	"eventbook/internal/shared/config"
	"eventbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles auth-related routes
type Router struct {
	controller *Controller
	config     *config.Config
}

func NewRouter(controller *Controller, cfg *config.Config) *Router {
	return &Router{controller: controller, config: cfg}
}

// SetupRoutes registers all auth routes. extra runs before the handlers of
// the public endpoints, e.g. a stricter rate limit.
func (authRouter *Router) SetupRoutes(rg *gin.RouterGroup, extra ...gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		public := auth.Group("", extra...)
		public.POST("/register", authRouter.controller.Register)
		public.POST("/login", authRouter.controller.Login)
		public.POST("/refresh", authRouter.controller.RefreshToken)
		public.POST("/logout", authRouter.controller.Logout)

		protected := auth.Group("")
		protected.Use(middleware.JWTAuthWithConfig(authRouter.config))
		{
			protected.PUT("/change-password", authRouter.controller.ChangePassword)
			protected.GET("/me", authRouter.controller.GetMe)
		}
	}
}
