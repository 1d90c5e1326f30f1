package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/repository"
)

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]Pinger
		expectedStatus int
		expectedChecks map[string]string
	}{
		{
			name: "all dependencies up",
			checks: map[string]Pinger{
				"store": repository.NewMemory(),
				"redis": PingFunc(func(context.Context) error { return nil }),
			},
			expectedStatus: http.StatusOK,
			expectedChecks: map[string]string{"store": "ok", "redis": "ok"},
		},
		{
			name: "redis down",
			checks: map[string]Pinger{
				"store": repository.NewMemory(),
				"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedChecks: map[string]string{"store": "ok", "redis": "failed: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(time.Second, tt.checks)
			w := httptest.NewRecorder()
			h.Ready(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)

			var body struct {
				Data HealthStatus `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedChecks, body.Data.Checks)
		})
	}
}

func TestHealthHandler_ReadyHonoursTimeout(t *testing.T) {
	slow := PingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h := NewHealthHandler(10*time.Millisecond, map[string]Pinger{"store": slow})

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "deadline exceeded")
}

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler(time.Second, nil)
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
