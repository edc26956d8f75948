package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := gin.New()
	healthy.GET("/healthz", NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
	}).Healthz)
	w := perform(healthy, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","dependencies":{"postgres":"ok"}}`, w.Body.String())

	degraded := gin.New()
	degraded.GET("/healthz", NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}).Healthz)
	w = perform(degraded, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","dependencies":{"postgres":"ok","redis":"connection refused"}}`, w.Body.String())
}
