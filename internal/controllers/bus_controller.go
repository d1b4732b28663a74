package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"qr_transit/internal/config"
	"qr_transit/internal/models"
	"qr_transit/internal/repository"
)

var errReferenceMissing = errors.New("referenced record does not exist")

// CreateBus registers a bus, optionally already on a route and with a driver.
func CreateBus(c *gin.Context) {
	var input struct {
		BusNumber string `json:"bus_number" binding:"required"`
		BusName   string `json:"bus_name"`
		RouteID   *uint  `json:"route_id"`
		DriverID  *uint  `json:"driver_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bus := models.Bus{
		BusNumber: input.BusNumber,
		BusName:   input.BusName,
		RouteID:   input.RouteID,
		DriverID:  input.DriverID,
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Route{}, input.RouteID); err != nil {
			return err
		}
		if err := ensureExists(tx, &models.Driver{}, input.DriverID); err != nil {
			return err
		}
		return tx.Create(&bus).Error
	})
	if err != nil {
		respondBusWriteError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"bus_id": bus.ID, "bus_number": bus.BusNumber}).Info("Bus created.")
	respondBus(c, http.StatusCreated, bus.ID)
}

// ListBuses returns every bus with its route and driver.
func ListBuses(c *gin.Context) {
	var buses []models.Bus
	q := config.DB.Preload("Route").Preload("Driver").Order("id")
	if c.Query("active") == "true" {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&buses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch buses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": buses})
}

func GetBus(c *gin.Context) {
	id, ok := busIDParam(c)
	if !ok {
		return
	}
	respondBus(c, http.StatusOK, id)
}

// UpdateBus changes the number or name of a bus.
func UpdateBus(c *gin.Context) {
	id, ok := busIDParam(c)
	if !ok {
		return
	}

	var input struct {
		BusNumber *string `json:"bus_number"`
		BusName   *string `json:"bus_name"`
		IsActive  *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if input.BusNumber != nil {
		if *input.BusNumber == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bus_number cannot be empty"})
			return
		}
		updates["bus_number"] = *input.BusNumber
	}
	if input.BusName != nil {
		updates["bus_name"] = *input.BusName
	}
	// Only deactivation is allowed here. Buses become active by reporting a position.
	if input.IsActive != nil {
		if *input.IsActive {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a bus becomes active when its driver reports a location"})
			return
		}
		updates["is_active"] = false
	}

	if err := updateBus(id, updates); err != nil {
		respondBusWriteError(c, err)
		return
	}
	respondBus(c, http.StatusOK, id)
}

// DeleteBus removes a bus and its location history.
func DeleteBus(c *gin.Context) {
	id, ok := busIDParam(c)
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		n, err := repository.PurgeBus(tx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrBusNotFound
		}
		return nil
	})
	if err != nil {
		respondBusWriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus deleted"})
}

// AssignBusRoute moves a bus onto a route, or off any route when route_id is null.
// The bus restarts from the first stop.
func AssignBusRoute(c *gin.Context) {
	id, ok := busIDParam(c)
	if !ok {
		return
	}

	var input struct {
		RouteID *uint `json:"route_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Route{}, input.RouteID); err != nil {
			return err
		}
		return updateBusTx(tx, id, map[string]interface{}{
			"route_id":        input.RouteID,
			"next_stop_index": 0,
		})
	})
	if err != nil {
		respondBusWriteError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"bus_id": id, "route_id": fkField(input.RouteID)}).Info("Bus route assigned.")
	respondBus(c, http.StatusOK, id)
}

// AssignBusDriver puts a driver on a bus, or removes the driver when driver_id is null.
// A driver drives at most one bus; the previous bus of that driver is released.
func AssignBusDriver(c *gin.Context) {
	id, ok := busIDParam(c)
	if !ok {
		return
	}

	var input struct {
		DriverID *uint `json:"driver_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Driver{}, input.DriverID); err != nil {
			return err
		}
		if input.DriverID != nil {
			if err := repository.ReleaseDriver(tx, *input.DriverID, id); err != nil {
				return err
			}
		}
		return updateBusTx(tx, id, map[string]interface{}{"driver_id": input.DriverID})
	})
	if err != nil {
		respondBusWriteError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"bus_id": id, "driver_id": fkField(input.DriverID)}).Info("Bus driver assigned.")
	respondBus(c, http.StatusOK, id)
}

func busIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus ID"})
		return 0, false
	}
	return uint(id), true
}

func updateBus(id uint, updates map[string]interface{}) error {
	return config.DB.Transaction(func(tx *gorm.DB) error {
		return updateBusTx(tx, id, updates)
	})
}

func updateBusTx(tx *gorm.DB, id uint, updates map[string]interface{}) error {
	var count int64
	if err := tx.Model(&models.Bus{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrBusNotFound
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Bus{}).Where("id = ?", id).Updates(updates).Error
}

// ensureExists checks that the optional foreign key id names a live row of model.
func ensureExists(tx *gorm.DB, model interface{}, id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := tx.Model(model).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errReferenceMissing
	}
	return nil
}

// fkField renders an optional foreign key for log fields.
func fkField(id *uint) interface{} {
	if id == nil {
		return "none"
	}
	return *id
}

func respondBus(c *gin.Context, status int, id uint) {
	bus, err := repository.NewTransitRepository(config.DB).FindBus(c.Request.Context(), id)
	if err != nil {
		respondBusWriteError(c, err)
		return
	}
	c.JSON(status, gin.H{"bus": bus})
}

func respondBusWriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrBusNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
	case errors.Is(err, errReferenceMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": "route or driver does not exist"})
	case repository.IsUniqueViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": "bus number or driver already in use"})
	default:
		logrus.WithError(err).Error("bus write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save bus: " + err.Error()})
	}
}
