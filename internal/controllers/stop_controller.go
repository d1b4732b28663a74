package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"qr_transit/internal/arrivals"
	"qr_transit/internal/config"
	"qr_transit/internal/models"
	"qr_transit/internal/repository"
)

type stopInput struct {
	Name    string   `json:"name" binding:"required"`
	Code    string   `json:"code" binding:"required"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
}

// CreateStop registers a new stop.
func CreateStop(c *gin.Context) {
	var input stopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !(arrivals.Coordinate{Lat: *input.Lat, Lng: *input.Lng}).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat/lng out of range"})
		return
	}

	stop := models.Stop{
		Name:    input.Name,
		Code:    repository.NormalizeStopCode(input.Code),
		Address: input.Address,
		Lat:     *input.Lat,
		Lng:     *input.Lng,
	}
	if err := config.DB.Create(&stop).Error; err != nil {
		respondStopWriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stop": stop})
}

// ListStops lists all stops ordered by name.
func ListStops(c *gin.Context) {
	var stops []models.Stop
	if err := config.DB.Order("name").Find(&stops).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch stops"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stops})
}

// GetStop returns a stop with the routes that serve it.
func GetStop(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop ID"})
		return
	}

	var stop models.Stop
	if err := config.DB.First(&stop, id).Error; err != nil {
		respondNotFoundOr500(c, err, "Stop not found")
		return
	}

	var routes []models.Route
	err = config.DB.
		Joins("JOIN route_stops ON route_stops.route_id = routes.id AND route_stops.deleted_at IS NULL").
		Where("route_stops.stop_id = ?", stop.ID).
		Order("routes.number").
		Find(&routes).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch routes for stop"})
		return
	}

	served := make([]gin.H, 0, len(routes))
	for _, r := range routes {
		served = append(served, gin.H{"id": r.ID, "name": r.Name, "number": r.Number})
	}
	c.JSON(http.StatusOK, gin.H{"stop": stop, "routes": served})
}

// UpdateStop modifies an existing stop.
func UpdateStop(c *gin.Context) {
	id := c.Param("id")
	var stop models.Stop
	if err := config.DB.First(&stop, id).Error; err != nil {
		respondNotFoundOr500(c, err, "Stop not found")
		return
	}

	var input struct {
		Name    *string  `json:"name"`
		Code    *string  `json:"code"`
		Address *string  `json:"address"`
		Lat     *float64 `json:"lat"`
		Lng     *float64 `json:"lng"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Name != nil {
		stop.Name = *input.Name
	}
	if input.Code != nil {
		stop.Code = repository.NormalizeStopCode(*input.Code)
	}
	if input.Address != nil {
		stop.Address = *input.Address
	}
	if input.Lat != nil {
		stop.Lat = *input.Lat
	}
	if input.Lng != nil {
		stop.Lng = *input.Lng
	}
	if !(arrivals.Coordinate{Lat: stop.Lat, Lng: stop.Lng}).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat/lng out of range"})
		return
	}
	if stop.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code cannot be empty"})
		return
	}

	if err := config.DB.Save(&stop).Error; err != nil {
		respondStopWriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stop": stop})
}

// DeleteStop removes a stop that no route uses.
func DeleteStop(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop ID"})
		return
	}

	var used int64
	if err := config.DB.Model(&models.RouteStop{}).Where("stop_id = ?", id).Count(&used).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check stop usage"})
		return
	}
	if used > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Stop is still part of a route; remove it from the route first"})
		return
	}

	n, err := repository.PurgeStop(config.DB, uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete stop"})
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stop not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stop deleted"})
}

func respondStopWriteError(c *gin.Context, err error) {
	if repository.IsUniqueViolation(err) {
		c.JSON(http.StatusConflict, gin.H{"error": "stop code already in use"})
		return
	}
	logrus.WithError(err).Error("stop write failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save stop: " + err.Error()})
}

func respondNotFoundOr500(c *gin.Context, err error, notFound string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	logrus.WithError(err).Error("database error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
