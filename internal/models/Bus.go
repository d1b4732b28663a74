package models

import (
	"time"

	"gorm.io/gorm"
)

type Bus struct {
	gorm.Model
	BusNumber string `json:"bus_number" gorm:"uniqueIndex;not null"`
	BusName   string `json:"bus_name"`

	RouteID  *uint   `json:"route_id" gorm:"index"`
	Route    *Route  `gorm:"foreignKey:RouteID" json:"route,omitempty"`
	DriverID *uint   `json:"driver_id" gorm:"uniqueIndex"`
	Driver   *Driver `gorm:"foreignKey:DriverID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"driver,omitempty"`

	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Speed         float64   `json:"speed"` // km/h
	IsActive      bool      `json:"is_active" gorm:"index;default:false"`
	NextStopIndex int       `json:"next_stop_index"`
	LastUpdated   time.Time `json:"last_updated" gorm:"index"`
}
