package arrivals

import "time"

// The types below are fully resolved, read-only snapshots handed to the engine by the
// storage layer. They carry no lazy references; a bus is evaluated from one value copy.

// Stop is the stop being queried.
type Stop struct {
	ID       uint
	Name     string
	Code     string
	Address  string
	Location Coordinate
	RouteIDs []uint
}

// RouteStop is one entry of a route's ordered stop sequence.
// Location is nil when the referenced stop has no usable coordinates.
type RouteStop struct {
	StopID               uint
	Name                 string
	Code                 string
	Order                int
	DistanceFromPrevious float64
	Location             *Coordinate
}

// Route is a route with its stops in ascending Order.
type Route struct {
	ID     uint
	Name   string
	Number string
	Stops  []RouteStop
}

// Bus is the state of one bus at query time.
type Bus struct {
	ID            uint
	Number        string
	Name          string
	DriverName    string
	Route         *Route
	Location      Coordinate
	SpeedKmh      float64
	IsActive      bool
	NextStopIndex int
	LastUpdated   time.Time
}
