package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBridgeMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewBridgeMetrics(reg)

	m.BusTransactionTotal.WithLabelValues("ok").Inc()
	m.BusTransactionTotal.WithLabelValues("timeout").Add(2)
	m.ModeGauge.Set(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BusTransactionTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeGauge))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "axb_bus_transactions_total"))
}
