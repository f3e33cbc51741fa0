package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAnalysis("ok", 0.2, 100, 6)
	m.ObserveAnalysis("no_data", 0.1, 0, 0)
	m.RecordUpstream("klines", nil)
	m.RecordUpstream("klines", errors.New("boom"))
	m.RecordCacheLookup(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("ok")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.CandlesFetched))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.TradesSimulated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("klines", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", "200", 0.01)
		m.ObserveAnalysis("ok", 1, 1, 1)
		m.RecordUpstream("klines", nil)
		m.RecordCacheLookup(false)
		m.RecordTick()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveHTTP("GET", "/health", "200", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `backtester_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
