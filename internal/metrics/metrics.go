package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ArrivalsQueries  *prometheus.CounterVec // mode label: stop|passenger
	ArrivalsFailures *prometheus.CounterVec // reason label: stop_not_found|store_error
	ArrivalsDuration prometheus.Histogram
	ArrivalsBuses    prometheus.Histogram

	ReaperSweeps     prometheus.Counter
	ReaperErrors     prometheus.Counter
	BusesDeactivated prometheus.Counter

	LocationUpdates *prometheus.CounterVec // result label: accepted|rejected|error
	StopsAdvanced   prometheus.Counter
	WatcherConns    prometheus.Gauge

	HTTPRequests *prometheus.CounterVec // method, route, status
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ArrivalsQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrtransit_arrivals_queries_total",
			Help: "Arrivals queries answered, by ETA target mode.",
		}, []string{"mode"}),
		ArrivalsFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrtransit_arrivals_failures_total",
			Help: "Arrivals queries that returned no result.",
		}, []string{"reason"}),
		ArrivalsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrtransit_arrivals_duration_seconds",
			Help:    "Time to load snapshots and rank buses for one query.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		ArrivalsBuses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrtransit_arrivals_buses",
			Help:    "Approaching buses returned per query.",
			Buckets: prometheus.LinearBuckets(0, 2, 11),
		}),
		ReaperSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrtransit_reaper_sweeps_total",
			Help: "Liveness sweeps run.",
		}),
		ReaperErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrtransit_reaper_errors_total",
			Help: "Liveness sweeps that failed.",
		}),
		BusesDeactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrtransit_buses_deactivated_total",
			Help: "Buses flipped inactive after a silence window.",
		}),
		LocationUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrtransit_location_updates_total",
			Help: "Driver location reports, by outcome.",
		}, []string{"result"}),
		StopsAdvanced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrtransit_next_stop_advances_total",
			Help: "Times a bus's next stop index moved forward.",
		}),
		WatcherConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qrtransit_route_watchers",
			Help: "Open WebSocket connections watching routes.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrtransit_http_requests_total",
			Help: "HTTP requests by method, route template and status.",
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.ArrivalsQueries, c.ArrivalsFailures, c.ArrivalsDuration, c.ArrivalsBuses,
		c.ReaperSweeps, c.ReaperErrors, c.BusesDeactivated,
		c.LocationUpdates, c.StopsAdvanced, c.WatcherConns, c.HTTPRequests,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) ObserveArrivalsQuery(d time.Duration, buses int, passenger bool) {
	mode := "stop"
	if passenger {
		mode = "passenger"
	}
	c.ArrivalsQueries.WithLabelValues(mode).Inc()
	c.ArrivalsDuration.Observe(d.Seconds())
	c.ArrivalsBuses.Observe(float64(buses))
}

func (c *Collector) ArrivalsQueryFailed(reason string) {
	c.ArrivalsFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) SweepCompleted(deactivated int64) {
	c.ReaperSweeps.Inc()
	c.BusesDeactivated.Add(float64(deactivated))
}

func (c *Collector) SweepFailed() {
	c.ReaperSweeps.Inc()
	c.ReaperErrors.Inc()
}

func (c *Collector) LocationUpdate(result string, advanced bool) {
	c.LocationUpdates.WithLabelValues(result).Inc()
	if advanced {
		c.StopsAdvanced.Inc()
	}
}

func (c *Collector) WatcherConnected()    { c.WatcherConns.Inc() }
func (c *Collector) WatcherDisconnected() { c.WatcherConns.Dec() }

func (c *Collector) ObserveHTTP(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
