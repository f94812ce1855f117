package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func serveHealth(inspector QueueInspector) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(inspector, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func TestHealthReportsQueueInfo(t *testing.T) {
	rec := serveHealth(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1, Failed: 2}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body QueueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, QueueHealth{Queue: QueueDefault, Pending: 3, Retry: 1, Failed: 2}, body)
}

func TestHealthWithoutInspector(t *testing.T) {
	rec := serveHealth(nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"default"`)
}

func TestHealthInspectorFailure(t *testing.T) {
	rec := serveHealth(stubInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
