package models

import (
	"time"

	"gorm.io/gorm"
)

// LocationHistory is the trail of accepted position reports for a bus.
type LocationHistory struct {
	gorm.Model
	BusID         uint      `json:"bus_id" gorm:"index"`
	DriverID      uint      `json:"driver_id" gorm:"index"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Speed         float64   `json:"speed"`   // km/h
	Bearing       float64   `json:"bearing"` // degrees
	NextStopIndex int       `json:"next_stop_index"`
	Timestamp     time.Time `json:"timestamp"`
}
