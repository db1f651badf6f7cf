package routes

import (
	"net/http"
	"time"

	"eventbook/docs"
	"eventbook/internal/auth"
	"eventbook/internal/bookings"
	"eventbook/internal/events"
	"eventbook/internal/reservations"
	"eventbook/internal/shared/config"
	"eventbook/internal/shared/database"
	"eventbook/pkg/cache"
	"eventbook/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config      *config.Config
	db          *database.DB
	cache       cache.Service
	rateLimiter *ratelimit.RateLimiter
	publisher   reservations.Publisher

	bookingService bookings.Service
	engine         *reservations.Engine
}

// NewRouter creates a new router instance. cacheService, rateLimiter and
// publisher may be nil.
func NewRouter(cfg *config.Config, db *database.DB, cacheService cache.Service, rateLimiter *ratelimit.RateLimiter, publisher reservations.Publisher) *Router {
	return &Router{
		config:      cfg,
		db:          db,
		cache:       cacheService,
		rateLimiter: rateLimiter,
		publisher:   publisher,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)
	r.setupSwagger(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)
		// Booking reads first: the catalog uses the booking service as its ledger
		r.setupBookingRoutes(api)
		r.setupEventRoutes(api)
		r.setupReservationRoutes(api)
	}
}

// Engine returns the reservation engine once routes are set up.
func (r *Router) Engine() *reservations.Engine {
	return r.engine
}

func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "eventbook-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "eventbook-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":               "operational",
			"api_version":          r.config.APIVersion,
			"reservation_strategy": r.engine.Strategy(),
			"redis_cache":          r.cache != nil,
			"rate_limiting":        r.rateLimiter != nil,
			"booking_events":       r.publisher != nil,
			"timestamp":            time.Now(),
		})
	})
}

func (r *Router) setupSwagger(engine *gin.Engine) {
	docs.SwaggerInfo.BasePath = r.config.GetAPIBasePath()
	docs.SwaggerInfo.Version = r.config.APIVersion
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authRepo := auth.NewRepository(r.db.GetPostgreSQL())
	authService := auth.NewService(authRepo, r.config)
	authController := auth.NewController(authService)
	auth.NewRouter(authController, r.config).SetupRoutes(rg)
}

func (r *Router) setupBookingRoutes(rg *gin.RouterGroup) {
	bookingRepo := bookings.NewRepository(r.db.GetPostgreSQL())
	r.bookingService = bookings.NewService(bookingRepo)
	bookings.SetupBookingRoutes(rg, r.config, bookings.NewController(r.bookingService))
}

func (r *Router) setupEventRoutes(rg *gin.RouterGroup) {
	eventRepo := events.NewRepository(r.db.GetPostgreSQL())
	eventService := events.NewService(eventRepo, r.bookingService, r.cache, r.config.Events)
	events.SetupEventRoutes(rg, r.config, events.NewController(eventService))
}

func (r *Router) setupReservationRoutes(rg *gin.RouterGroup) {
	pg := r.db.GetPostgreSQL()
	store := reservations.NewGormStore(pg, bookings.NewRepository(pg))

	opts := []reservations.Option{reservations.FromConfig(r.config.Reservation)}
	if r.cache != nil {
		opts = append(opts, reservations.WithCache(r.cache))
	}
	if r.publisher != nil {
		opts = append(opts, reservations.WithPublisher(r.publisher))
	}
	r.engine = reservations.NewEngine(store, opts...)

	var extra []gin.HandlerFunc
	if r.rateLimiter != nil {
		extra = append(extra, ratelimit.Limit(r.rateLimiter, ratelimit.RateLimitTypeBookingCritical))
	}
	reservations.SetupReservationRoutes(rg, r.config, reservations.NewController(r.engine), extra...)
}
