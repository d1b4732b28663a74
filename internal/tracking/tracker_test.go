package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qr_transit/internal/arrivals"
)

var depot = arrivals.Coordinate{Lat: 13.0827, Lng: 80.2707}

func north(km float64) arrivals.Coordinate {
	return arrivals.Coordinate{Lat: depot.Lat + km/arrivals.EarthRadiusKm*180/math.Pi, Lng: depot.Lng}
}

func ptr[T any](v T) *T { return &v }

// route has stops at 0, 1, 2 and 3 km north of the depot with orders 0..3.
func route() *arrivals.Route {
	r := &arrivals.Route{ID: 5, Name: "Coastal", Number: "19B"}
	for i := 0; i < 4; i++ {
		r.Stops = append(r.Stops, arrivals.RouteStop{StopID: uint(i + 1), Order: i, Location: ptr(north(float64(i)))})
	}
	return r
}

func TestNextStopIndex(t *testing.T) {
	const radius = 0.05

	tests := []struct {
		name    string
		route   *arrivals.Route
		current int
		pos     arrivals.Coordinate
		claimed *int
		want    int
	}{
		{"between stops stays", route(), 1, north(0.5), nil, 1},
		{"at next stop advances", route(), 1, north(1.01), nil, 2},
		{"at a later stop does not skip", route(), 1, north(2), nil, 1},
		{"at final stop finishes route", route(), 3, north(3), nil, 4},
		{"claimed forward", route(), 1, north(0.5), ptr(3), 3},
		{"claimed backwards ignored", route(), 2, north(0.5), ptr(0), 2},
		{"claimed beyond terminal clamped", route(), 1, north(0.5), ptr(99), 4},
		{"no route keeps claim", nil, 0, north(0.5), ptr(2), 2},
		{"no route no claim", nil, 3, north(0.5), nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStopIndex(tt.route, tt.current, tt.pos, tt.claimed, radius))
		})
	}
}

func TestNextStopIndex_StepsPastStopsCloseTogether(t *testing.T) {
	r := route()
	r.Stops[2].Location = ptr(north(1.02)) // order 2 sits 20 m from order 1

	assert.Equal(t, 3, NextStopIndex(r, 1, north(1.01), nil, 0.05))
}

type fakeStore struct {
	bus   AssignedBus
	err   error
	saved []PositionUpdate
}

func (f *fakeStore) LoadBusForDriver(context.Context, uint) (AssignedBus, error) {
	return f.bus, f.err
}

func (f *fakeStore) SaveBusPosition(_ context.Context, u PositionUpdate) error {
	f.saved = append(f.saved, u)
	return nil
}

type fakePublisher struct {
	routes []uint
	events []BusMoved
}

func (p *fakePublisher) Publish(routeID uint, e BusMoved) {
	p.routes = append(p.routes, routeID)
	p.events = append(p.events, e)
}

type fakeRecorder struct{ results []string }

func (r *fakeRecorder) LocationUpdate(result string, _ bool) { r.results = append(r.results, result) }

func newTracker(store *fakeStore) (*Tracker, *fakePublisher, *fakeRecorder) {
	pub, rec := &fakePublisher{}, &fakeRecorder{}
	tr := NewTracker(store, pub, rec, 50)
	tr.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	return tr, pub, rec
}

func TestTracker_Report(t *testing.T) {
	store := &fakeStore{bus: AssignedBus{DriverID: 8, Bus: arrivals.Bus{
		ID: 3, Number: "TN07", Route: route(), Location: north(0.9), NextStopIndex: 1, IsActive: true,
	}}}
	tr, pub, rec := newTracker(store)

	moved, err := tr.Report(context.Background(), 42, Report{Lat: north(1).Lat, Lng: north(1).Lng, Speed: -4})

	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, uint(3), saved.BusID)
	assert.Equal(t, uint(8), saved.DriverID)
	assert.Equal(t, 2, saved.NextStopIndex)
	assert.Zero(t, saved.SpeedKmh)
	assert.InDelta(t, 0, saved.Bearing, 0.01) // heading due north
	assert.Equal(t, tr.now(), saved.Timestamp)

	assert.Equal(t, []uint{5}, pub.routes)
	assert.Equal(t, moved, pub.events[0])
	assert.Equal(t, "bus_moved", moved.Type)
	assert.Equal(t, []string{"accepted"}, rec.results)
}

func TestTracker_RejectsInvalidLocation(t *testing.T) {
	store := &fakeStore{}
	tr, pub, rec := newTracker(store)

	_, err := tr.Report(context.Background(), 42, Report{Lat: math.NaN(), Lng: 80})

	assert.ErrorIs(t, err, ErrInvalidLocation)
	assert.Empty(t, store.saved)
	assert.Empty(t, pub.events)
	assert.Equal(t, []string{"rejected"}, rec.results)
}

func TestTracker_NoAssignedBus(t *testing.T) {
	tr, _, rec := newTracker(&fakeStore{err: ErrNoAssignedBus})

	_, err := tr.Report(context.Background(), 42, Report{Lat: 13, Lng: 80})

	assert.ErrorIs(t, err, ErrNoAssignedBus)
	assert.Equal(t, []string{"rejected"}, rec.results)
}

func TestTracker_StoreError(t *testing.T) {
	tr, _, rec := newTracker(&fakeStore{err: errors.New("db down")})

	_, err := tr.Report(context.Background(), 42, Report{Lat: 13, Lng: 80})

	assert.EqualError(t, err, "db down")
	assert.Equal(t, []string{"error"}, rec.results)
}

func TestTracker_KeepsPastTimestampAndDropsFuture(t *testing.T) {
	store := &fakeStore{bus: AssignedBus{Bus: arrivals.Bus{ID: 1}}}
	tr, pub, _ := newTracker(store)
	past := tr.now().Add(-20 * time.Second)

	_, err := tr.Report(context.Background(), 1, Report{Lat: 13, Lng: 80, Timestamp: past})
	require.NoError(t, err)
	_, err = tr.Report(context.Background(), 1, Report{Lat: 13, Lng: 80, Timestamp: tr.now().Add(time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, past, store.saved[0].Timestamp)
	assert.Equal(t, tr.now(), store.saved[1].Timestamp)
	assert.Empty(t, pub.events, "buses without a route are not broadcast")
}

func TestReport_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"utc", `{"lat":1,"lng":2,"timestamp":"2026-10-16T08:00:00Z"}`, time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)},
		{"no zone assumes utc", `{"lat":1,"lng":2,"timestamp":"2026-10-16T08:00:00.5"}`, time.Date(2026, 10, 16, 8, 0, 0, 500000000, time.UTC)},
		{"offset", `{"lat":1,"lng":2,"timestamp":"2026-10-16T13:30:00+05:30"}`, time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)},
		{"missing", `{"lat":1,"lng":2}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Report
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			assert.True(t, tt.want.Equal(r.Timestamp), "got %s", r.Timestamp)
			assert.Equal(t, 1.0, r.Lat)
			assert.Equal(t, 2.0, r.Lng)
		})
	}

	var r Report
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &r))

	require.NoError(t, json.Unmarshal([]byte(`{"lat":1,"lng":2,"next_stop_index":4}`), &r))
	require.NotNil(t, r.NextStopIndex)
	assert.Equal(t, 4, *r.NextStopIndex)
}
