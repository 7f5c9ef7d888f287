package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.RecordProcessed("spot:BTCUSDT:bands")
	m.RecordProcessed("spot:BTCUSDT:bands")
	m.RecordSkipped("spot:BTCUSDT:bands", ReasonMalformed)
	m.SetCursor("spot:BTCUSDT:bands", 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.processed.WithLabelValues("spot:BTCUSDT:bands")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("spot:BTCUSDT:bands", ReasonMalformed)))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.cursor.WithLabelValues("spot:BTCUSDT:bands")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordProcessed("s")
		m.RecordSkipped("s", ReasonFiltered)
		m.FetchFailed("s")
		m.SetCursor("s", 1)
		m.EventEmitted("s", "bands")
		m.EmitFailed("s")
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.FetchFailed("futures:ETHUSDT:depth")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `depthwatch_fetch_errors_total{stream="futures:ETHUSDT:depth"} 1`)
}
