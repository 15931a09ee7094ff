package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/ledger"
	"poolLedger/internal/metadata"
)

var (
	_ ledger.Recorder   = (*Metrics)(nil)
	_ metadata.Observer = (*Metrics)(nil)
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventApplied("Swap")
	m.EventApplied("Swap")
	m.EventSkipped("Mint", "missing_pool")
	m.EventFailed("Flash")
	m.ObserveMetadata("rpc")
	m.ObserveFlush(12)
	m.ObserveFlush(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("Swap")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsSkipped.WithLabelValues("Mint", "missing_pool")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsFailed.WithLabelValues("Flash")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MetadataLookups.WithLabelValues("rpc")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Flushes))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.FlushedEntities))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).EventApplied("Collect")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `pool_ledger_ledger_events_applied_total{event="Collect"} 1`), rec.Body.String())
}
