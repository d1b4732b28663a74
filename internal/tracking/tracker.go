// Package tracking ingests driver position reports and moves buses along their routes.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"qr_transit/internal/arrivals"
)

var (
	ErrNoAssignedBus   = errors.New("no bus assigned to this driver")
	ErrInvalidLocation = errors.New("latitude and longitude must be finite and in range")
)

// AssignedBus is a driver's bus as loaded for one report.
type AssignedBus struct {
	DriverID uint
	Bus      arrivals.Bus
}

// PositionUpdate is what gets persisted for an accepted report.
type PositionUpdate struct {
	BusID         uint
	DriverID      uint
	Location      arrivals.Coordinate
	SpeedKmh      float64
	Bearing       float64
	NextStopIndex int
	Timestamp     time.Time
}

// BusMoved is broadcast to route watchers after an update is saved.
type BusMoved struct {
	Type          string    `json:"type"`
	BusID         uint      `json:"bus_id"`
	BusNumber     string    `json:"bus_number"`
	RouteID       uint      `json:"route_id"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Speed         float64   `json:"speed"`
	Bearing       float64   `json:"bearing"`
	NextStopIndex int       `json:"next_stop_index"`
	Timestamp     time.Time `json:"timestamp"`
}

type Store interface {
	LoadBusForDriver(ctx context.Context, userID uint) (AssignedBus, error)
	SaveBusPosition(ctx context.Context, u PositionUpdate) error
}

type Publisher interface {
	Publish(routeID uint, event BusMoved)
}

type Recorder interface {
	LocationUpdate(result string, advanced bool)
}

// Tracker validates reports, advances next-stop progress and persists the result.
type Tracker struct {
	store     Store
	publisher Publisher
	recorder  Recorder
	radiusKm  float64
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewTracker builds a Tracker. publisher and recorder may be nil.
func NewTracker(store Store, publisher Publisher, recorder Recorder, arrivalRadiusMeters float64) *Tracker {
	return &Tracker{
		store:     store,
		publisher: publisher,
		recorder:  recorder,
		radiusKm:  arrivalRadiusMeters / 1000,
		now:       time.Now,
		log:       logrus.WithField("component", "tracking"),
	}
}

// Report applies one position report from the driver account userID.
func (t *Tracker) Report(ctx context.Context, userID uint, r Report) (BusMoved, error) {
	pos := arrivals.Coordinate{Lat: r.Lat, Lng: r.Lng}
	if !pos.Valid() {
		t.record("rejected", false)
		return BusMoved{}, ErrInvalidLocation
	}

	assigned, err := t.store.LoadBusForDriver(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoAssignedBus) {
			t.record("rejected", false)
		} else {
			t.record("error", false)
		}
		return BusMoved{}, err
	}
	bus := assigned.Bus

	now := t.now()
	ts := r.Timestamp
	if ts.IsZero() || ts.After(now.Add(time.Minute)) {
		ts = now
	}

	next := NextStopIndex(bus.Route, bus.NextStopIndex, pos, r.NextStopIndex, t.radiusKm)
	update := PositionUpdate{
		BusID:         bus.ID,
		DriverID:      assigned.DriverID,
		Location:      pos,
		SpeedKmh:      sanitizeSpeed(r.Speed),
		Bearing:       bearing(bus.Location, pos),
		NextStopIndex: next,
		Timestamp:     ts,
	}

	if err := t.store.SaveBusPosition(ctx, update); err != nil {
		t.record("error", false)
		return BusMoved{}, fmt.Errorf("save position for bus %d: %w", bus.ID, err)
	}
	advanced := next > bus.NextStopIndex
	t.record("accepted", advanced)

	event := BusMoved{
		Type:          "bus_moved",
		BusID:         bus.ID,
		BusNumber:     bus.Number,
		Lat:           pos.Lat,
		Lng:           pos.Lng,
		Speed:         update.SpeedKmh,
		Bearing:       update.Bearing,
		NextStopIndex: next,
		Timestamp:     ts,
	}
	if bus.Route != nil {
		event.RouteID = bus.Route.ID
		if t.publisher != nil {
			t.publisher.Publish(bus.Route.ID, event)
		}
	}

	entry := t.log.WithFields(logrus.Fields{
		"bus_id":          bus.ID,
		"driver_id":       assigned.DriverID,
		"next_stop_index": next,
		"speed_kmh":       fmt.Sprintf("%.1f", update.SpeedKmh),
	})
	if advanced {
		entry.Info("bus reached stop, next stop index advanced")
	} else {
		entry.Debug("bus position updated")
	}
	return event, nil
}

func (t *Tracker) record(result string, advanced bool) {
	if t.recorder != nil {
		t.recorder.LocationUpdate(result, advanced)
	}
}

// NextStopIndex returns the bus's progress marker after a report at pos. It never goes
// backwards. A claimed index from the device is honoured up to one past the final stop.
// Otherwise the marker steps past every consecutive upcoming stop within radiusKm.
func NextStopIndex(route *arrivals.Route, current int, pos arrivals.Coordinate, claimed *int, radiusKm float64) int {
	next := current
	if route == nil || len(route.Stops) == 0 {
		if claimed != nil && *claimed > next {
			next = *claimed
		}
		return next
	}

	terminal := 0
	for _, rs := range route.Stops {
		if rs.Order+1 > terminal {
			terminal = rs.Order + 1
		}
	}

	if claimed != nil {
		if *claimed > next {
			next = *claimed
		}
		if next > terminal {
			next = terminal
		}
		return maxInt(next, current)
	}

	for _, rs := range route.Stops {
		if rs.Order < next {
			continue
		}
		if rs.Location == nil || arrivals.Distance(pos, *rs.Location) > radiusKm {
			break
		}
		next = rs.Order + 1
	}
	return next
}

func sanitizeSpeed(kmh float64) float64 {
	if math.IsNaN(kmh) || math.IsInf(kmh, 0) || kmh < 0 {
		return 0
	}
	return kmh
}

// bearing is the initial great-circle bearing from a to b in degrees [0, 360).
func bearing(a, b arrivals.Coordinate) float64 {
	if a == b || (a.Lat == 0 && a.Lng == 0) {
		return 0
	}
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(deg+360, 360)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
