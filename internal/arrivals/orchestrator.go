// Package arrivals ranks the buses approaching a stop.
//
// Everything in this package is pure computation over snapshots: no I/O, no shared
// state, safe for concurrent use. Lookups live in Service.
package arrivals

import (
	"sort"
	"time"
)

// StopSummary is the stop section of a Result.
type StopSummary struct {
	ID      uint    `json:"id"`
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// PassengerSummary is present only when the query carried a valid passenger position.
type PassengerSummary struct {
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	WalkingDistanceKm float64 `json:"walkingDistanceKm"`
	WalkingMinutes    int     `json:"walkingMinutes"`
}

// BusArrival is one ranked bus.
type BusArrival struct {
	ID                  uint            `json:"id"`
	BusNumber           string          `json:"busNumber"`
	BusName             string          `json:"busName"`
	RouteName           string          `json:"routeName"`
	RouteNumber         string          `json:"routeNumber"`
	DriverName          string          `json:"driverName"`
	CurrentLocation     Coordinate      `json:"currentLocation"`
	Speed               float64         `json:"speed"`
	DistanceKm          float64         `json:"distanceKm"`
	DistanceToStop      float64         `json:"distanceToStop"`
	ETAMinutes          int             `json:"etaMinutes"`
	TotalJourneyMinutes int             `json:"totalJourneyMinutes"`
	LastUpdated         time.Time       `json:"lastUpdated"`
	StopsAway           int             `json:"stopsAway"`
	RoutePolyline       []PolylinePoint `json:"routePolyline"`
}

// Result is the full answer to an arrivals query.
type Result struct {
	Stop      StopSummary       `json:"stop"`
	Passenger *PassengerSummary `json:"passenger"`
	Buses     []BusArrival      `json:"buses"`
}

// ComputeArrivals evaluates every candidate bus against stop and returns the approaching
// ones sorted by ETA to the target (passenger position if given, else the stop).
// Buses with equal ETA keep their input order. Buses that are inactive, lack a route,
// report an unusable position or have already passed the stop are left out.
func ComputeArrivals(stop Stop, buses []Bus, passenger *Coordinate) Result {
	if passenger != nil && !passenger.Valid() {
		passenger = nil
	}

	res := Result{
		Stop: StopSummary{
			ID:      stop.ID,
			Name:    stop.Name,
			Code:    stop.Code,
			Address: stop.Address,
			Lat:     stop.Location.Lat,
			Lng:     stop.Location.Lng,
		},
		Buses: make([]BusArrival, 0, len(buses)),
	}
	if passenger != nil {
		km, mins := Walk(*passenger, stop.Location)
		res.Passenger = &PassengerSummary{
			Lat:               passenger.Lat,
			Lng:               passenger.Lng,
			WalkingDistanceKm: km,
			WalkingMinutes:    mins,
		}
	}

	for _, bus := range buses {
		if arrival, ok := evaluate(stop, bus, passenger); ok {
			res.Buses = append(res.Buses, arrival)
		}
	}

	sort.SliceStable(res.Buses, func(i, j int) bool {
		return res.Buses[i].ETAMinutes < res.Buses[j].ETAMinutes
	})
	return res
}

// evaluate runs the per-bus pipeline on a single bus value.
func evaluate(stop Stop, bus Bus, passenger *Coordinate) (BusArrival, bool) {
	if !bus.IsActive || bus.Route == nil || !bus.Location.Valid() {
		return BusArrival{}, false
	}
	route := *bus.Route

	progress := CheckProgress(route, stop.ID, bus.NextStopIndex)
	if !progress.Included {
		return BusArrival{}, false
	}

	target := Target(passenger, stop.Location)
	primary := Estimate(bus.Location, target, bus.SpeedKmh)
	toStop := Estimate(bus.Location, stop.Location, bus.SpeedKmh)
	journey := Compose(passenger, stop.Location, primary)

	return BusArrival{
		ID:                  bus.ID,
		BusNumber:           bus.Number,
		BusName:             bus.Name,
		RouteName:           route.Name,
		RouteNumber:         route.Number,
		DriverName:          bus.DriverName,
		CurrentLocation:     bus.Location,
		Speed:               bus.SpeedKmh,
		DistanceKm:          primary.DistanceKm,
		DistanceToStop:      toStop.DistanceKm,
		ETAMinutes:          primary.Minutes,
		TotalJourneyMinutes: journey.TotalJourneyMinutes,
		LastUpdated:         bus.LastUpdated,
		StopsAway:           progress.StopsAway,
		RoutePolyline:       Polyline(route, stop.ID, bus.NextStopIndex),
	}, true
}
