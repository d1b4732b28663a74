package models

import (
	"gorm.io/gorm"
)

// Route is a fixed line served by buses. RouteStops define the direction of travel.
type Route struct {
	gorm.Model

	Name        string `json:"name" binding:"required"`
	Number      string `json:"number" gorm:"index"`
	Description string `json:"description"`

	// Geometry stored as WKB (SRID 4326 LINESTRING). Clients send and receive GeoJSON.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	RouteStops []RouteStop `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"route_stops,omitempty"`
	Buses      []Bus       `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"buses,omitempty"`
}
