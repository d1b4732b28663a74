package controllers

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"qr_transit/internal/arrivals"
	"qr_transit/internal/config"
	"qr_transit/internal/models"
	"qr_transit/internal/repository"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// RouteResponse mirrors models.Route with Geometry rendered as GeoJSON.
type RouteResponse struct {
	ID          uint               `json:"ID"`
	CreatedAt   time.Time          `json:"CreatedAt"`
	UpdatedAt   time.Time          `json:"UpdatedAt"`
	Name        string             `json:"name"`
	Number      string             `json:"number"`
	Description string             `json:"description"`
	Geometry    json.RawMessage    `json:"geometry,omitempty"`
	Stops       []RouteStopSummary `json:"stops"`
	Buses       []models.Bus       `json:"buses,omitempty"`
}

type RouteStopSummary struct {
	StopID               uint    `json:"stop_id"`
	Name                 string  `json:"name"`
	Code                 string  `json:"code"`
	Order                int     `json:"order"`
	DistanceFromPrevious float64 `json:"distance_from_previous"`
	Lat                  float64 `json:"lat"`
	Lng                  float64 `json:"lng"`
}

// routeStopInput places an existing stop at a position on a route.
type routeStopInput struct {
	StopID uint `json:"stop_id" binding:"required"`
	Order  int  `json:"order"`
}

var (
	errGeometryNotLine = errors.New("geometry must be a GeoJSON LineString")
	errRouteNotFound   = errors.New("route not found")
)

func toRouteResponse(route models.Route) RouteResponse {
	resp := RouteResponse{
		ID:          route.ID,
		CreatedAt:   route.CreatedAt,
		UpdatedAt:   route.UpdatedAt,
		Name:        route.Name,
		Number:      route.Number,
		Description: route.Description,
		Stops:       make([]RouteStopSummary, 0, len(route.RouteStops)),
		Buses:       route.Buses,
	}
	if gj, err := convertWKBToGeoJSON(route.Geometry); err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("Stored route geometry is not valid WKB.")
	} else if gj != "" {
		resp.Geometry = json.RawMessage(gj)
	}
	for _, rs := range route.RouteStops {
		resp.Stops = append(resp.Stops, RouteStopSummary{
			StopID:               rs.StopID,
			Name:                 rs.Stop.Name,
			Code:                 rs.Stop.Code,
			Order:                rs.Order,
			DistanceFromPrevious: rs.DistanceFromPrevious,
			Lat:                  rs.Stop.Lat,
			Lng:                  rs.Stop.Lng,
		})
	}
	return resp
}

// parseAndConvertGeometry parses a GeoJSON LineString into WKB bytes. The geometry may be
// sent as a JSON object or as a string holding one.
func parseAndConvertGeometry(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}

	var g geom.T
	if err := gjson.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	line, ok := g.(*geom.LineString)
	if !ok {
		return nil, errGeometryNotLine
	}
	if line.NumCoords() < 2 {
		return nil, errors.New("a route line needs at least two points")
	}
	return wkb.Marshal(line, binary.LittleEndian)
}

// convertWKBToGeoJSON converts WKB bytes into a GeoJSON string
func convertWKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// buildRouteStops validates an ordered stop list and fills in the distance from each stop to
// the one before it. known holds the referenced stops by id.
func buildRouteStops(routeID uint, input []routeStopInput, known map[uint]models.Stop) ([]models.RouteStop, error) {
	out := make([]models.RouteStop, 0, len(input))
	seen := make(map[uint]bool, len(input))
	var prev *models.Stop

	for i, in := range input {
		if in.Order < 0 {
			return nil, fmt.Errorf("stop %d: order must not be negative", in.StopID)
		}
		if i > 0 && in.Order <= input[i-1].Order {
			return nil, fmt.Errorf("stop %d: orders must be strictly increasing (%d after %d)", in.StopID, in.Order, input[i-1].Order)
		}
		if seen[in.StopID] {
			return nil, fmt.Errorf("stop %d appears more than once", in.StopID)
		}
		seen[in.StopID] = true

		stop, ok := known[in.StopID]
		if !ok {
			return nil, fmt.Errorf("stop %d does not exist", in.StopID)
		}

		var dist float64
		if prev != nil {
			dist = arrivals.Distance(
				arrivals.Coordinate{Lat: prev.Lat, Lng: prev.Lng},
				arrivals.Coordinate{Lat: stop.Lat, Lng: stop.Lng},
			)
		}
		out = append(out, models.RouteStop{
			RouteID:              routeID,
			StopID:               in.StopID,
			Order:                in.Order,
			DistanceFromPrevious: dist,
		})
		prev = &stop
	}
	return out, nil
}

// replaceStops swaps the route's stop list inside tx. Old rows are removed for good so the
// unique (route, order) index can be reused.
func replaceStops(tx *gorm.DB, routeID uint, input []routeStopInput) error {
	ids := make([]uint, 0, len(input))
	for _, in := range input {
		ids = append(ids, in.StopID)
	}
	var stops []models.Stop
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&stops).Error; err != nil {
			return err
		}
	}
	known := make(map[uint]models.Stop, len(stops))
	for _, s := range stops {
		known[s.ID] = s
	}

	rows, err := buildRouteStops(routeID, input, known)
	if err != nil {
		return &validationError{err}
	}
	if err := tx.Unscoped().Where("route_id = ?", routeID).Delete(&models.RouteStop{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

type validationError struct{ err error }

func (e *validationError) Error() string { return e.err.Error() }
func (e *validationError) Unwrap() error { return e.err }

func respondRouteWriteError(c *gin.Context, err error) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, errRouteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	default:
		logrus.WithError(err).Error("route write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save route: " + err.Error()})
	}
}

func loadRoute(db *gorm.DB, id uint64) (models.Route, error) {
	var route models.Route
	err := db.
		Preload("RouteStops", func(db *gorm.DB) *gorm.DB { return db.Order("stop_order ASC") }).
		Preload("RouteStops.Stop").
		Preload("Buses").
		First(&route, id).Error
	return route, err
}

// CreateRoute creates a route with optional GeoJSON LineString geometry and ordered stops.
func CreateRoute(c *gin.Context) {
	var input struct {
		Name        string           `json:"name" binding:"required"`
		Number      string           `json:"number"`
		Description string           `json:"description"`
		Geometry    json.RawMessage  `json:"geometry"`
		Stops       []routeStopInput `json:"stops" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("CreateRoute: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	wkbGeom, err := parseAndConvertGeometry(input.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
		return
	}

	route := models.Route{Name: input.Name, Number: input.Number, Description: input.Description, Geometry: wkbGeom}
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&route).Error; err != nil {
			return err
		}
		return replaceStops(tx, route.ID, input.Stops)
	})
	if err != nil {
		respondRouteWriteError(c, err)
		return
	}

	route, err = loadRoute(config.DB, uint64(route.ID))
	if err != nil {
		respondNotFoundOr500(c, err, "Route not found")
		return
	}
	logrus.WithFields(logrus.Fields{"route_id": route.ID, "stops": len(route.RouteStops)}).Info("Route created.")
	c.JSON(http.StatusCreated, gin.H{"route": toRouteResponse(route)})
}

// ListRoutes returns all routes with their stops.
func ListRoutes(c *gin.Context) {
	var routes []models.Route
	err := config.DB.
		Preload("RouteStops", func(db *gorm.DB) *gorm.DB { return db.Order("stop_order ASC") }).
		Preload("RouteStops.Stop").
		Order("number, id").
		Find(&routes).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch routes"})
		return
	}

	routeResponses := make([]RouteResponse, 0, len(routes))
	for _, r := range routes {
		routeResponses = append(routeResponses, toRouteResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"routes": routeResponses})
}

// GetRoute returns a single route with stops and buses.
func GetRoute(c *gin.Context) {
	rID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}
	route, err := loadRoute(config.DB, rID)
	if err != nil {
		respondNotFoundOr500(c, err, "Route not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// UpdateRoute handles updating route metadata and geometry.
func UpdateRoute(c *gin.Context) {
	rID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		logrus.WithError(err).Warn("UpdateRoute: Invalid route ID in parameter")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	var existingRoute models.Route
	if err := config.DB.First(&existingRoute, rID).Error; err != nil {
		respondNotFoundOr500(c, err, "Route not found")
		return
	}

	var input struct {
		Name        *string         `json:"name"`
		Number      *string         `json:"number"`
		Description *string         `json:"description"`
		Geometry    json.RawMessage `json:"geometry"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("UpdateRoute: Invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Name != nil {
		if *input.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		existingRoute.Name = *input.Name
	}
	if input.Number != nil {
		existingRoute.Number = *input.Number
	}
	if input.Description != nil {
		existingRoute.Description = *input.Description
	}
	// An explicit null or empty string clears the stored line.
	if input.Geometry != nil {
		wkbGeom, err := parseAndConvertGeometry(input.Geometry)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
			return
		}
		existingRoute.Geometry = wkbGeom
	}

	if err := config.DB.Omit("RouteStops", "Buses").Save(&existingRoute).Error; err != nil {
		logrus.WithError(err).Error("UpdateRoute: Failed to save updated route")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Update failed: " + err.Error()})
		return
	}

	route, err := loadRoute(config.DB, rID)
	if err != nil {
		respondNotFoundOr500(c, err, "Route not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// ReplaceRouteStops replaces the ordered stop list of a route. Buses on the route restart
// from the first stop.
func ReplaceRouteStops(c *gin.Context) {
	rID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	var input struct {
		Stops []routeStopInput `json:"stops" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Route{}).Where("id = ?", rID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errRouteNotFound
		}
		if err := replaceStops(tx, uint(rID), input.Stops); err != nil {
			return err
		}
		return tx.Model(&models.Bus{}).Where("route_id = ?", rID).Update("next_stop_index", 0).Error
	})
	if err != nil {
		respondRouteWriteError(c, err)
		return
	}

	route, err := loadRoute(config.DB, rID)
	if err != nil {
		respondNotFoundOr500(c, err, "Route not found")
		return
	}
	logrus.WithFields(logrus.Fields{"route_id": route.ID, "stops": len(route.RouteStops)}).Info("Route stops replaced.")
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// GetRouteGeometry serves the stored line of a route as GeoJSON.
func GetRouteGeometry(c *gin.Context) {
	rID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	var route models.Route
	if err := config.DB.Select("id", "geometry").First(&route, rID).Error; err != nil {
		respondNotFoundOr500(c, err, "Route not found")
		return
	}
	gj, err := convertWKBToGeoJSON(route.Geometry)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Error("GetRouteGeometry: corrupt geometry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored geometry is unreadable"})
		return
	}
	if gj == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route has no geometry"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", []byte(gj))
}

// DeleteRoute removes a route and its stop list. Buses on it are left without a route.
func DeleteRoute(c *gin.Context) {
	rID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var route models.Route
		if err := tx.First(&route, rID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errRouteNotFound
			}
			return err
		}
		return repository.PurgeRoute(tx, route.ID)
	})
	if err != nil {
		respondRouteWriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Route deleted successfully"})
}
