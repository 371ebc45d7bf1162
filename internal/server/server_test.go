package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxtDesign/MaxtPM/internal/config"
	"github.com/MaxtDesign/MaxtPM/internal/handlers"
	"github.com/MaxtDesign/MaxtPM/internal/middleware"
	"github.com/MaxtDesign/MaxtPM/internal/repository/memory"
	"github.com/MaxtDesign/MaxtPM/internal/response"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTAccessSecret:  "a",
			JWTRefreshSecret: "b",
			JWTAccessTTL:     time.Minute,
			JWTRefreshTTL:    time.Hour,
		},
		AllowCORSOrigins: []string{"https://app.propease.test"},
	}
	h := handlers.NewHandlerSet(handlers.Deps{
		Log:    zerolog.Nop(),
		Config: cfg,
		Store:  memory.NewStore(),
	})
	return NewRouter(cfg, zerolog.Nop(), h)
}

func TestRouterGlobals(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Origin", "https://app.propease.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "https://app.propease.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterNotFound(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
