package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbortJSONStopsChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reached := false

	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		AbortJSON(c, http.StatusForbidden, "Insufficient permissions", nil)
	}, func(c *gin.Context) {
		reached = true
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body StandardApiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusError, body.Status)
	assert.Equal(t, http.StatusForbidden, body.StatusCode)
	assert.Nil(t, body.Data)
}
