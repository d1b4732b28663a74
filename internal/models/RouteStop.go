package models

import (
	"gorm.io/gorm"
)

// RouteStop places a stop on a route. Order starts at 0 and is strictly increasing
// along the direction of travel.
type RouteStop struct {
	gorm.Model

	RouteID              uint    `json:"route_id" gorm:"uniqueIndex:idx_route_stop;uniqueIndex:idx_route_order"`
	StopID               uint    `json:"stop_id" gorm:"uniqueIndex:idx_route_stop;index"`
	Stop                 Stop    `gorm:"foreignKey:StopID" json:"stop"`
	Order                int     `json:"order" gorm:"column:stop_order;uniqueIndex:idx_route_order"`
	DistanceFromPrevious float64 `json:"distance_from_previous"` // km
}
