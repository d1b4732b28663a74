package arrivals

import "sort"

// Progress is the outcome of checking whether a stop is still ahead of a bus.
type Progress struct {
	Included      bool
	StopsAway     int
	OrderOfTarget int
}

// PolylinePoint is one stop of a route rendered for a map.
type PolylinePoint struct {
	Name          string  `json:"name"`
	StopCode      string  `json:"stopCode"`
	Order         int     `json:"order"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	IsScannedStop bool    `json:"isScannedStop"`
	IsPassed      bool    `json:"isPassed"`
}

// CheckProgress reports whether targetStopID is at or beyond nextStopIndex on route.
// A stop that is not on the route is simply not included.
func CheckProgress(route Route, targetStopID uint, nextStopIndex int) Progress {
	for _, rs := range route.Stops {
		if rs.StopID != targetStopID {
			continue
		}
		if rs.Order < nextStopIndex {
			return Progress{OrderOfTarget: rs.Order}
		}
		return Progress{
			Included:      true,
			StopsAway:     rs.Order - nextStopIndex,
			OrderOfTarget: rs.Order,
		}
	}
	return Progress{OrderOfTarget: -1}
}

// Polyline projects the route's stops with coordinates into map points sorted by order.
// nextStopIndex must be the same value passed to CheckProgress for this bus.
func Polyline(route Route, targetStopID uint, nextStopIndex int) []PolylinePoint {
	points := make([]PolylinePoint, 0, len(route.Stops))
	for _, rs := range route.Stops {
		if rs.Location == nil || !rs.Location.Valid() {
			continue
		}
		points = append(points, PolylinePoint{
			Name:          rs.Name,
			StopCode:      rs.Code,
			Order:         rs.Order,
			Lat:           rs.Location.Lat,
			Lng:           rs.Location.Lng,
			IsScannedStop: rs.StopID == targetStopID,
			IsPassed:      rs.Order < nextStopIndex,
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Order < points[j].Order
	})
	return points
}
