package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qr_transit/internal/arrivals"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeFinder struct {
	result    arrivals.Result
	err       error
	gotID     uint
	gotCode   string
	passenger *arrivals.Coordinate
}

func (f *fakeFinder) Arrivals(_ context.Context, stopID uint, passenger *arrivals.Coordinate) (arrivals.Result, error) {
	f.gotID = stopID
	f.passenger = passenger
	return f.result, f.err
}

func (f *fakeFinder) ArrivalsByCode(_ context.Context, code string, passenger *arrivals.Coordinate) (arrivals.Result, error) {
	f.gotCode = code
	f.passenger = passenger
	return f.result, f.err
}

func arrivalsRouter(f *fakeFinder) *gin.Engine {
	r := gin.New()
	ac := NewArrivalController(f)
	r.GET("/api/stops/:id/arrivals", ac.ByID)
	r.GET("/api/stops/code/:code/arrivals", ac.ByCode)
	return r
}

func get(r http.Handler, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestArrivalController_ByID(t *testing.T) {
	f := &fakeFinder{result: arrivals.Result{
		Stop:  arrivals.StopSummary{ID: 4, Name: "Central", Code: "CEN"},
		Buses: []arrivals.BusArrival{{ID: 9, BusNumber: "TN-01", ETAMinutes: 6, StopsAway: 1}},
	}}

	w := get(arrivalsRouter(f), "/api/stops/4/arrivals?lat=13.05&lng=80.25")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(4), f.gotID)
	require.NotNil(t, f.passenger)
	assert.Equal(t, arrivals.Coordinate{Lat: 13.05, Lng: 80.25}, *f.passenger)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	buses := body["buses"].([]interface{})
	require.Len(t, buses, 1)
	bus := buses[0].(map[string]interface{})
	assert.Equal(t, "TN-01", bus["busNumber"])
	assert.EqualValues(t, 6, bus["etaMinutes"])
	assert.EqualValues(t, 1, bus["stopsAway"])
}

func TestArrivalController_IgnoresBadPassengerCoordinates(t *testing.T) {
	f := &fakeFinder{}

	w := get(arrivalsRouter(f), "/api/stops/4/arrivals?lat=abc&lng=80.25")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, f.passenger)
}

func TestArrivalController_ByCode(t *testing.T) {
	f := &fakeFinder{result: arrivals.Result{Stop: arrivals.StopSummary{ID: 4, Code: "CEN"}, Buses: []arrivals.BusArrival{}}}

	w := get(arrivalsRouter(f), "/api/stops/code/cen/arrivals")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cen", f.gotCode)
	assert.Nil(t, f.passenger)
	assert.JSONEq(t, `[]`, string(mustField(t, w.Body.Bytes(), "buses")))
}

func TestArrivalController_Errors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		err  error
		want int
	}{
		{"bad id", "/api/stops/abc/arrivals", nil, http.StatusBadRequest},
		{"zero id", "/api/stops/0/arrivals", nil, http.StatusBadRequest},
		{"unknown stop", "/api/stops/5/arrivals", arrivals.ErrStopNotFound, http.StatusNotFound},
		{"unknown code", "/api/stops/code/NOPE/arrivals", arrivals.ErrStopNotFound, http.StatusNotFound},
		{"store failure", "/api/stops/5/arrivals", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(arrivalsRouter(&fakeFinder{err: tt.err}), tt.url)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func mustField(t *testing.T, body []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	v, ok := m[key]
	require.True(t, ok, "missing %q in %s", key, body)
	return v
}
