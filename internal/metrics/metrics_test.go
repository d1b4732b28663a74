package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ArrivalsQueries(t *testing.T) {
	c := NewCollector()

	c.ObserveArrivalsQuery(3*time.Millisecond, 2, false)
	c.ObserveArrivalsQuery(time.Millisecond, 0, true)
	c.ObserveArrivalsQuery(time.Millisecond, 1, true)
	c.ArrivalsQueryFailed("stop_not_found")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ArrivalsQueries.WithLabelValues("stop")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ArrivalsQueries.WithLabelValues("passenger")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ArrivalsFailures.WithLabelValues("stop_not_found")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.ArrivalsQueries)+testutil.CollectAndCount(c.ArrivalsFailures))
}

func TestCollector_ReaperAndTracking(t *testing.T) {
	c := NewCollector()

	c.SweepCompleted(3)
	c.SweepCompleted(0)
	c.SweepFailed()
	c.LocationUpdate("accepted", true)
	c.LocationUpdate("accepted", false)
	c.LocationUpdate("rejected", false)
	c.WatcherConnected()
	c.WatcherConnected()
	c.WatcherDisconnected()

	assert.Equal(t, 3.0, testutil.ToFloat64(c.ReaperSweeps))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReaperErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.BusesDeactivated))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.LocationUpdates.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StopsAdvanced))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.WatcherConns))
}

func TestCollector_HandlerExposesRegistry(t *testing.T) {
	c := NewCollector()
	c.ObserveHTTP(http.MethodGet, "/api/stops/:id/arrivals", http.StatusOK)
	c.ObserveHTTP(http.MethodGet, "", http.StatusNotFound)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `qrtransit_http_requests_total{method="GET",route="/api/stops/:id/arrivals",status="200"} 1`)
	assert.Contains(t, body, `route="unmatched",status="404"`)
}
