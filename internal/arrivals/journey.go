package arrivals

import (
	"math"
	"strconv"
	"strings"
)

// WalkingSpeedKmh is the assumed passenger walking speed.
const WalkingSpeedKmh = 5.0

// Journey holds the passenger-facing timing for one bus.
type Journey struct {
	Target              Coordinate
	WalkingDistanceKm   float64
	WalkingMinutes      int
	TotalJourneyMinutes int
}

// Target is where the bus ETA is measured to: the passenger if present, else the stop.
func Target(passenger *Coordinate, stop Coordinate) Coordinate {
	if passenger != nil {
		return *passenger
	}
	return stop
}

// Walk returns the passenger-to-stop distance and walking minutes. Minutes are rounded up.
func Walk(passenger, stop Coordinate) (float64, int) {
	km := round2(Distance(passenger, stop))
	return km, int(math.Ceil(km * 60 / WalkingSpeedKmh))
}

// Compose combines the bus ETA to the target with the passenger's walk to the stop.
// busETA must already be measured to Target(passenger, stop).
func Compose(passenger *Coordinate, stop Coordinate, busETA ETA) Journey {
	j := Journey{
		Target:              Target(passenger, stop),
		TotalJourneyMinutes: busETA.Minutes,
	}
	if passenger == nil {
		return j
	}
	j.WalkingDistanceKm, j.WalkingMinutes = Walk(*passenger, stop)
	j.TotalJourneyMinutes += j.WalkingMinutes
	return j
}

// ParsePassenger turns raw lat/lng query values into an optional coordinate.
// Anything missing, unparsable, non-finite or out of range yields nil.
func ParsePassenger(rawLat, rawLng string) *Coordinate {
	rawLat, rawLng = strings.TrimSpace(rawLat), strings.TrimSpace(rawLng)
	if rawLat == "" || rawLng == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		return nil
	}
	c := Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return nil
	}
	return &c
}
