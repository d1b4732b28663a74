package models

import (
	"gorm.io/gorm"
)

// Stop is a physical boarding point. Code is the short identifier printed in its QR code.
type Stop struct {
	gorm.Model

	Name    string  `json:"name" binding:"required"`
	Code    string  `json:"code" gorm:"uniqueIndex;not null" binding:"required"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`

	RouteStops []RouteStop `gorm:"foreignKey:StopID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"route_stops,omitempty"`
}
