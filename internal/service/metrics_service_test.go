package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/applications/mine", 200, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveDBQuery("select:concession_applications", 4*time.Millisecond)
	m.RecordSubmission()
	m.RecordDecision("approved")
	m.RecordDecision("approved")
	m.RecordDecision("rejected")
	m.RecordExtension()
	m.RecordDocument("id_card")

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
	assert.EqualValues(t, 1, snap.DBQueryCount)
	assert.EqualValues(t, 1, snap.Submissions)
	assert.Equal(t, map[string]uint64{"approved": 2, "rejected": 1}, snap.Decisions)
	assert.EqualValues(t, 1, snap.Extensions)
	assert.EqualValues(t, 1, snap.DocumentsAttached)
}

func TestMetricsServiceHandlerExposesLifecycleCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordDecision("approved")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `concession_lifecycle_decisions_total{decision="approved"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordSubmission()
	m.RecordDecision("approved")
	m.ObserveDBQuery("select:x", time.Millisecond)
	assert.Equal(t, 0, m.Snapshot().Goroutines)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
