// Package repository adapts the gorm models to the snapshot types used by the
// arrivals engine and the location tracker.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"qr_transit/internal/arrivals"
	"qr_transit/internal/models"
	"qr_transit/internal/tracking"
)

// ErrBusNotFound is returned when a bus id matches no row.
var ErrBusNotFound = errors.New("bus not found")

// TransitRepository reads and writes transit data through gorm.
type TransitRepository struct {
	db *gorm.DB
}

func NewTransitRepository(db *gorm.DB) *TransitRepository {
	return &TransitRepository{db: db}
}

// NormalizeStopCode is the canonical form stop codes are stored and looked up in.
func NormalizeStopCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *TransitRepository) FindStopByID(ctx context.Context, id uint) (arrivals.Stop, error) {
	return r.findStop(ctx, "id = ?", id)
}

func (r *TransitRepository) FindStopByCode(ctx context.Context, code string) (arrivals.Stop, error) {
	return r.findStop(ctx, "code = ?", NormalizeStopCode(code))
}

func (r *TransitRepository) findStop(ctx context.Context, query string, arg interface{}) (arrivals.Stop, error) {
	var stop models.Stop
	err := r.db.WithContext(ctx).
		Preload("RouteStops").
		Where(query, arg).
		First(&stop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return arrivals.Stop{}, arrivals.ErrStopNotFound
	}
	if err != nil {
		return arrivals.Stop{}, fmt.Errorf("find stop: %w", err)
	}
	return toStopSnapshot(stop), nil
}

// FindActiveBusesServingStop returns active buses whose route includes stopID, ordered by
// bus id, with route stops and driver resolved.
func (r *TransitRepository) FindActiveBusesServingStop(ctx context.Context, stopID uint) ([]arrivals.Bus, error) {
	serving := r.db.Model(&models.RouteStop{}).Select("route_id").Where("stop_id = ?", stopID)

	var buses []models.Bus
	err := r.db.WithContext(ctx).
		Preload("Route").
		Preload("Route.RouteStops", func(db *gorm.DB) *gorm.DB { return db.Order("stop_order ASC") }).
		Preload("Route.RouteStops.Stop").
		Preload("Driver").
		Where("is_active = ? AND route_id IN (?)", true, serving).
		Order("id ASC").
		Find(&buses).Error
	if err != nil {
		return nil, fmt.Errorf("find buses serving stop %d: %w", stopID, err)
	}

	out := make([]arrivals.Bus, 0, len(buses))
	for _, b := range buses {
		out = append(out, toBusSnapshot(b))
	}
	return out, nil
}

// FindBus loads a bus with its route and driver for the admin surface.
func (r *TransitRepository) FindBus(ctx context.Context, id uint) (models.Bus, error) {
	var bus models.Bus
	err := r.db.WithContext(ctx).Preload("Route").Preload("Driver").First(&bus, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Bus{}, ErrBusNotFound
	}
	if err != nil {
		return models.Bus{}, fmt.Errorf("find bus %d: %w", id, err)
	}
	return bus, nil
}

// LoadBusForDriver returns the bus assigned to the driver profile of userID.
func (r *TransitRepository) LoadBusForDriver(ctx context.Context, userID uint) (tracking.AssignedBus, error) {
	var driver models.Driver
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tracking.AssignedBus{}, tracking.ErrNoAssignedBus
		}
		return tracking.AssignedBus{}, fmt.Errorf("find driver for user %d: %w", userID, err)
	}

	var bus models.Bus
	err := r.db.WithContext(ctx).
		Preload("Route").
		Preload("Route.RouteStops", func(db *gorm.DB) *gorm.DB { return db.Order("stop_order ASC") }).
		Preload("Route.RouteStops.Stop").
		Preload("Driver").
		Where("driver_id = ?", driver.ID).
		First(&bus).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tracking.AssignedBus{}, tracking.ErrNoAssignedBus
	}
	if err != nil {
		return tracking.AssignedBus{}, fmt.Errorf("find bus for driver %d: %w", driver.ID, err)
	}
	return tracking.AssignedBus{DriverID: driver.ID, Bus: toBusSnapshot(bus)}, nil
}

// SaveBusPosition moves the bus and appends to its location history in one transaction.
// next_stop_index never decreases, even when reports race.
func (r *TransitRepository) SaveBusPosition(ctx context.Context, u tracking.PositionUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Bus{}).
			Where("id = ?", u.BusID).
			Updates(map[string]interface{}{
				"lat":             u.Location.Lat,
				"lng":             u.Location.Lng,
				"speed":           u.SpeedKmh,
				"is_active":       true,
				"last_updated":    u.Timestamp,
				"next_stop_index": gorm.Expr("GREATEST(next_stop_index, ?)", u.NextStopIndex),
			})
		if res.Error != nil {
			return fmt.Errorf("update bus %d: %w", u.BusID, res.Error)
		}
		if res.RowsAffected == 0 {
			return tracking.ErrNoAssignedBus
		}

		history := models.LocationHistory{
			BusID:         u.BusID,
			DriverID:      u.DriverID,
			Latitude:      u.Location.Lat,
			Longitude:     u.Location.Lng,
			Speed:         u.SpeedKmh,
			Bearing:       u.Bearing,
			NextStopIndex: u.NextStopIndex,
			Timestamp:     u.Timestamp,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("record location history: %w", err)
		}
		return nil
	})
}

// DeactivateStale flips buses silent since before cutoff to inactive and returns how many
// changed. Running it twice is harmless.
func (r *TransitRepository) DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Bus{}).
		Where("is_active = ? AND last_updated < ?", true, cutoff).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func toStopSnapshot(s models.Stop) arrivals.Stop {
	routeIDs := make([]uint, 0, len(s.RouteStops))
	for _, rs := range s.RouteStops {
		routeIDs = append(routeIDs, rs.RouteID)
	}
	sort.Slice(routeIDs, func(i, j int) bool { return routeIDs[i] < routeIDs[j] })

	return arrivals.Stop{
		ID:       s.ID,
		Name:     s.Name,
		Code:     s.Code,
		Address:  s.Address,
		Location: arrivals.Coordinate{Lat: s.Lat, Lng: s.Lng},
		RouteIDs: routeIDs,
	}
}

func toRouteSnapshot(r *models.Route) *arrivals.Route {
	if r == nil || r.ID == 0 {
		return nil
	}
	route := &arrivals.Route{
		ID:     r.ID,
		Name:   r.Name,
		Number: r.Number,
		Stops:  make([]arrivals.RouteStop, 0, len(r.RouteStops)),
	}
	for _, rs := range r.RouteStops {
		entry := arrivals.RouteStop{
			StopID:               rs.StopID,
			Name:                 rs.Stop.Name,
			Code:                 rs.Stop.Code,
			Order:                rs.Order,
			DistanceFromPrevious: rs.DistanceFromPrevious,
		}
		// A stop row that failed to load leaves the entry without coordinates.
		if rs.Stop.ID != 0 {
			c := arrivals.Coordinate{Lat: rs.Stop.Lat, Lng: rs.Stop.Lng}
			if c.Valid() {
				entry.Location = &c
			}
		}
		route.Stops = append(route.Stops, entry)
	}
	sort.SliceStable(route.Stops, func(i, j int) bool { return route.Stops[i].Order < route.Stops[j].Order })
	return route
}

func toBusSnapshot(b models.Bus) arrivals.Bus {
	bus := arrivals.Bus{
		ID:            b.ID,
		Number:        b.BusNumber,
		Name:          b.BusName,
		Location:      arrivals.Coordinate{Lat: b.Lat, Lng: b.Lng},
		SpeedKmh:      b.Speed,
		IsActive:      b.IsActive,
		NextStopIndex: b.NextStopIndex,
		LastUpdated:   b.LastUpdated,
	}
	if b.RouteID != nil {
		bus.Route = toRouteSnapshot(b.Route)
	}
	if b.Driver != nil {
		bus.DriverName = b.Driver.Name
	}
	return bus
}
