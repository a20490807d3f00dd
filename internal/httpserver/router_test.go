package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func get(r *Router, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := true
	r := NewRouter(func(context.Context) error {
		if !healthy {
			return errors.New("redis down")
		}
		return nil
	}, func() any {
		return map[string]string{"state": "enabled_idle"}
	})

	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(r, "/readyz").Code)

	healthy = false
	w := get(r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis down")

	w = get(r, "/status")
	assert.JSONEq(t, `{"state":"enabled_idle"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, get(r, "/metrics").Code)
}

func TestRouterWithoutStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(nil, nil)
	assert.Equal(t, http.StatusOK, get(r, "/readyz").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/status").Code)
}
