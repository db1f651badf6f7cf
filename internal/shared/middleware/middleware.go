package middleware

import (
	"net/http"
	"strings"

	"eventbook/internal/shared/config"
	"eventbook/internal/shared/utils/response"
	"eventbook/internal/users"
	"eventbook/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Context keys set by the auth middleware
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextUserRole  = "user_role"
)

// JWTAuthWithConfig creates a JWT authentication middleware with config
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AbortJSON(c, http.StatusUnauthorized, "Authorization header is required", nil)
			return
		}

		claims, ok := parseBearer(authHeader, cfg.JWT.Secret)
		if !ok {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), "invalid bearer token", c.ClientIP())
			response.AbortJSON(c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

func parseBearer(authHeader, secret string) (jwt.MapClaims, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	if tokenType, ok := claims["type"]; !ok || tokenType != "access" {
		return nil, false
	}
	return claims, true
}

func setClaims(c *gin.Context, claims jwt.MapClaims) {
	c.Set(ContextUserID, claims["user_id"])
	c.Set(ContextUserEmail, claims["email"])
	c.Set(ContextUserRole, claims["role"])
}

// RequireRoles middleware checks if user has any of the required roles
func RequireRoles(requiredRoles ...users.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := CurrentRole(c)
		if !ok {
			response.AbortJSON(c, http.StatusUnauthorized, "user role not found in context", nil)
			return
		}

		for _, r := range requiredRoles {
			if role == r {
				c.Next()
				return
			}
		}

		response.AbortJSON(c, http.StatusForbidden, "Insufficient permissions", nil)
	}
}

// CurrentUserID returns the authenticated user's id.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// CurrentRole returns the authenticated user's role.
func CurrentRole(c *gin.Context) (users.Role, bool) {
	raw, exists := c.Get(ContextUserRole)
	if !exists {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	return users.Role(s), true
}

func IsAdmin(c *gin.Context) bool {
	role, ok := CurrentRole(c)
	return ok && role == users.RoleAdmin
}
