package bookings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventbook/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accessToken(t *testing.T, secret string, userID uuid.UUID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"email":   "buyer@example.com",
		"role":    role,
		"type":    "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newTestRouter(repo Repository) (*gin.Engine, *config.Config) {
	gin.SetMode(gin.TestMode)
	cfg := config.Load()
	engine := gin.New()
	SetupBookingRoutes(engine.Group("/api/v1"), cfg, NewController(NewService(repo)))
	return engine, cfg
}

func TestController_GetBooking(t *testing.T) {
	buyer := uuid.New()
	b := newBooking(buyer, uuid.New(), 3)
	engine, cfg := newTestRouter(&fakeRepo{bookings: []Booking{b}})

	tests := []struct {
		name   string
		path   string
		user   uuid.UUID
		role   string
		auth   bool
		status int
	}{
		{"owner", "/api/v1/bookings/" + b.ID.String(), buyer, "USER", true, http.StatusOK},
		{"stranger", "/api/v1/bookings/" + b.ID.String(), uuid.New(), "USER", true, http.StatusForbidden},
		{"admin", "/api/v1/bookings/" + b.ID.String(), uuid.New(), "ADMIN", true, http.StatusOK},
		{"missing", "/api/v1/bookings/" + uuid.NewString(), buyer, "USER", true, http.StatusNotFound},
		{"bad id", "/api/v1/bookings/not-a-uuid", buyer, "USER", true, http.StatusBadRequest},
		{"anonymous", "/api/v1/bookings/" + b.ID.String(), buyer, "USER", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+accessToken(t, cfg.JWT.Secret, tt.user, tt.role))
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestController_GetUserBookings(t *testing.T) {
	buyer := uuid.New()
	repo := &fakeRepo{bookings: []Booking{newBooking(buyer, uuid.New(), 1), newBooking(buyer, uuid.New(), 2)}}
	engine, cfg := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/bookings?limit=1", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, cfg.JWT.Secret, buyer, "USER"))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data PaginatedBookings `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Data.TotalCount)
	assert.Equal(t, 2, body.Data.TotalPages)
	assert.Len(t, body.Data.Bookings, 1)
}
