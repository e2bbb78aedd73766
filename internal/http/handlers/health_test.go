package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klinicq/queue-platform/pkg/logging"
)

func TestCheck_NoDependencies(t *testing.T) {
	handler := NewHealthHandler(logging.Default())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.Check(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCheck_AllDependenciesHealthy(t *testing.T) {
	handler := NewHealthHandler(logging.Default())
	handler.AddCheck("dynamodb", func(ctx context.Context) error { return nil })
	handler.AddCheck("redis", func(ctx context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.Check(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Dependencies["dynamodb"])
	assert.Equal(t, "ok", resp.Dependencies["redis"])
}

func TestCheck_DegradedWhenDependencyFails(t *testing.T) {
	handler := NewHealthHandler(logging.Default())
	handler.AddCheck("dynamodb", func(ctx context.Context) error { return nil })
	handler.AddCheck("redis", func(ctx context.Context) error {
		return errors.New("dial tcp: connection refused")
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.Check(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Dependencies["dynamodb"])
	assert.Contains(t, resp.Dependencies["redis"], "connection refused")
}
