package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watering_notification_bot/internal/infra/scheduler"
)

type staticStatus struct{ snap scheduler.Snapshot }

func (s staticStatus) Snapshot() scheduler.Snapshot { return s.snap }

func newTestServer(deps Dependencies) *Server {
	gin.SetMode(gin.TestMode)
	l := logrus.New()
	l.SetOutput(io.Discard)
	deps.Logger = logrus.NewEntry(l)
	return New("127.0.0.1:0", deps)
}

func get(t *testing.T, s *Server, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(Dependencies{Checks: map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	}})

	rec := get(t, s, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
}

func TestHealthz_Degraded(t *testing.T) {
	s := newTestServer(Dependencies{Checks: map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}})

	rec := get(t, s, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestStatus(t *testing.T) {
	s := newTestServer(Dependencies{Status: staticStatus{snap: scheduler.Snapshot{
		State:    "waiting",
		Passes:   3,
		LastPass: &scheduler.PassResult{ID: "p-1", Plantings: 2, Notified: 1},
	}}})

	rec := get(t, s, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Loop scheduler.Snapshot `json:"loop"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "waiting", body.Loop.State)
	assert.Equal(t, 3, body.Loop.Passes)
	require.NotNil(t, body.Loop.LastPass)
	assert.Equal(t, 1, body.Loop.LastPass.Notified)
}

func TestStatus_CORS(t *testing.T) {
	s := newTestServer(Dependencies{AllowOrigins: []string{"https://dashboard.example.com"}})

	rec := get(t, s, "/status", map[string]string{"Origin": "https://dashboard.example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
