package events

import (
	"bytes"
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

func bearer(t *testing.T, secret string, userID uuid.UUID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"email":   "organizer@example.com",
		"role":    role,
		"type":    "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

type eventEnvelope struct {
	StatusCode int   `json:"status_code"`
	Data       Event `json:"data"`
}

func setupRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Load()
	router := gin.New()
	svc := NewService(newFakeRepo(), &fakeLedger{}, nil, testEventsConfig)
	SetupEventRoutes(router.Group("/api/v1"), cfg, NewController(svc))
	return router, cfg
}

func do(router http.Handler, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestController_EventLifecycle(t *testing.T) {
	router, cfg := setupRouter(t)
	organizer := uuid.New()
	token := bearer(t, cfg.JWT.Secret, organizer, "ORGANIZER")

	w := do(router, http.MethodPost, "/api/v1/events", token, createRequest("Conf2025"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created eventEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.Data.TicketPools, 2)
	path := "/api/v1/events/" + created.Data.ID.String()

	w = do(router, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/api/v1/events/my-events", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	stranger := bearer(t, cfg.JWT.Secret, uuid.New(), "ORGANIZER")
	w = do(router, http.MethodPatch, path, stranger, map[string]string{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(router, http.MethodGet, path+"/payments", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestController_CreateEventErrors(t *testing.T) {
	router, cfg := setupRouter(t)

	buyer := bearer(t, cfg.JWT.Secret, uuid.New(), "USER")
	w := do(router, http.MethodPost, "/api/v1/events", buyer, createRequest("Nope"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(router, http.MethodPost, "/api/v1/events", "", createRequest("Nope"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	organizer := bearer(t, cfg.JWT.Secret, uuid.New(), "ORGANIZER")
	bad := createRequest("Backwards")
	bad.EndDateTime = bad.StartDateTime.Add(-time.Hour)
	w = do(router, http.MethodPost, "/api/v1/events", organizer, bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/v1/events/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/v1/events?category=cooking", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
