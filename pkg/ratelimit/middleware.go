package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"eventbook/internal/shared/middleware"
	"eventbook/internal/shared/utils/response"
	"eventbook/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware classifies each request by its route and applies the matching
// limit. Reservation attempts are skipped here: the booking route applies
// Limit after authentication so it can count per buyer.
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limitType := getRateLimitType(c.Request.Method, c.FullPath())
		if limitType == RateLimitTypeBookingCritical {
			c.Next()
			return
		}
		apply(c, rateLimiter, limitType)
	}
}

// Limit applies one fixed limit type.
func Limit(rateLimiter *RateLimiter, limitType RateLimitType) gin.HandlerFunc {
	return func(c *gin.Context) {
		apply(c, rateLimiter, limitType)
	}
}

func apply(c *gin.Context, rateLimiter *RateLimiter, limitType RateLimitType) {
	client := clientKey(c, limitType)

	result, err := rateLimiter.IsAllowed(c.Request.Context(), client, limitType)
	if err != nil {
		// Redis trouble must not take the API down with it
		logger.GetDefault().WithError(err).Warn("Rate limit check failed, allowing request",
			"client", client, "type", string(limitType))
		c.Next()
		return
	}

	// Add rate limit headers
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

	if !result.Allowed {
		logger.GetDefault().LogRateLimitExceeded(c.Request.Context(), client, c.FullPath())
		response.AbortJSON(c, http.StatusTooManyRequests, "Rate limit exceeded", map[string]interface{}{
			"limit":      result.Limit,
			"reset_time": result.ResetTime,
		})
		return
	}

	c.Next()
}

// clientKey identifies the caller. Reservation attempts are counted per
// authenticated buyer so one account cannot spread load across addresses.
func clientKey(c *gin.Context, limitType RateLimitType) string {
	if limitType == RateLimitTypeBookingCritical {
		if userID, ok := middleware.CurrentUserID(c); ok {
			return "user:" + userID.String()
		}
	}
	return c.ClientIP()
}

func getRateLimitType(method, path string) RateLimitType {
	switch {
	case strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/ping"),
		strings.HasPrefix(path, "/status"):
		return RateLimitTypeHealth

	case strings.Contains(path, "/auth/"):
		return RateLimitTypeAuth

	// Reservation attempts
	case method == http.MethodPost && strings.HasSuffix(path, "/events/:eventId/bookings"):
		return RateLimitTypeBookingCritical

	case strings.Contains(path, "/bookings"):
		return RateLimitTypeBooking

	case strings.Contains(path, "/events"):
		return RateLimitTypePublic

	case strings.Contains(path, "/users/"):
		return RateLimitTypeUser

	default:
		return RateLimitTypeDefault
	}
}
