package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natusdeed/fashion-site-sub000/internal/config"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
	"github.com/natusdeed/fashion-site-sub000/pkg/middleware"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{"STORE_BACKEND": "memory"})
	require.NoError(t, err)
	return cfg
}

func TestNewApp_MemoryBackend(t *testing.T) {
	a, err := NewApp(memoryConfig(t), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(a.closeResources)

	rec := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/drawer", strings.NewReader(`{"open":true}`))
	req.Header.Set("Content-Type", "application/json")
	a.httpServer.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.SessionHeader))
	assert.Equal(t, 1, a.sessions.Len())
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := NewApp(memoryConfig(t), logger.Discard())
	require.NoError(t, err)
	a.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, a.sessions.Len())
}
