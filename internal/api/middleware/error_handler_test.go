package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestErrorHandler_NoErrors(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandler_AppError(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), ErrorHandler())
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrIntegrationNotFoundf("la-9"))
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/fail", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, apperrors.CodeIntegrationNotFound, body["code"])
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestErrorHandler_AppErrorParams(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeIntegrationInactive, "integration is disconnected").
			WithParams(map[string]interface{}{"integration_id": "int-1"}))
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/fail", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, map[string]interface{}{"integration_id": "int-1"}, body["params"])
}

func TestErrorHandler_GenericError(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/err", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("pq: connection refused"))
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/err", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, apperrors.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestErrorHandler_ResponseAlreadyWritten(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(fmt.Errorf("late failure"))
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/rid", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := serve(router, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}
