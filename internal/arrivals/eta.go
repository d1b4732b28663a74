package arrivals

import "math"

const (
	// StalledSpeedKmh is the reported speed at or below which a bus is treated as stalled.
	StalledSpeedKmh = 5.0
	// FallbackSpeedKmh replaces the reported speed of a stalled bus.
	FallbackSpeedKmh = 20.0
)

// ETA is a distance and travel-time estimate between two points.
type ETA struct {
	DistanceKm float64
	Minutes    int
}

// EffectiveSpeed returns the speed used for ETA math. Speeds at or below
// StalledSpeedKmh (including stale zeros and negatives) fall back to FallbackSpeedKmh.
func EffectiveSpeed(reportedKmh float64) float64 {
	if reportedKmh > StalledSpeedKmh && !math.IsInf(reportedKmh, 0) {
		return reportedKmh
	}
	return FallbackSpeedKmh
}

// Estimate computes the distance from pos to target and the minutes needed to cover it
// at the effective speed. Minutes are rounded half away from zero.
func Estimate(pos, target Coordinate, reportedKmh float64) ETA {
	km := round2(Distance(pos, target))
	if km == 0 {
		return ETA{}
	}
	return ETA{
		DistanceKm: km,
		Minutes:    int(math.Round(km * 60 / EffectiveSpeed(reportedKmh))),
	}
}
