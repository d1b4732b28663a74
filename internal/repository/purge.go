package repository

import (
	"gorm.io/gorm"

	"qr_transit/internal/models"
)

// The Purge helpers delete rows for good. A soft-deleted row keeps its unique
// bus number, driver slot, stop code or email and blocks reuse.

// PurgeBus removes a bus together with its location history.
func PurgeBus(tx *gorm.DB, id uint) (int64, error) {
	if err := tx.Unscoped().Where("bus_id = ?", id).Delete(&models.LocationHistory{}).Error; err != nil {
		return 0, err
	}
	res := tx.Unscoped().Delete(&models.Bus{}, id)
	return res.RowsAffected, res.Error
}

// PurgeStop removes a stop. Callers make sure no route still uses it.
func PurgeStop(tx *gorm.DB, id uint) (int64, error) {
	res := tx.Unscoped().Delete(&models.Stop{}, id)
	return res.RowsAffected, res.Error
}

// PurgeAdmin removes an admin account. Other roles are left alone.
func PurgeAdmin(tx *gorm.DB, id uint) (int64, error) {
	res := tx.Unscoped().Where("id = ? AND role = ?", id, models.RoleAdmin).Delete(&models.User{})
	return res.RowsAffected, res.Error
}

// PurgeDriverUser removes a driver account and its profile, taking the driver off any bus.
func PurgeDriverUser(tx *gorm.DB, user models.User) error {
	if user.Driver != nil {
		if err := ReleaseDriver(tx, user.Driver.ID, 0); err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&models.Driver{}, user.Driver.ID).Error; err != nil {
			return err
		}
	}
	return tx.Unscoped().Delete(&models.User{}, user.ID).Error
}

// PurgeRoute removes a route and its stop list. Buses on it are left without a route.
func PurgeRoute(tx *gorm.DB, id uint) error {
	if err := tx.Unscoped().Model(&models.Bus{}).Where("route_id = ?", id).
		Updates(map[string]interface{}{"route_id": nil, "next_stop_index": 0}).Error; err != nil {
		return err
	}
	if err := tx.Unscoped().Where("route_id = ?", id).Delete(&models.RouteStop{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Delete(&models.Route{}, id).Error
}

// ReleaseDriver clears driverID from every bus except exceptBusID, including
// rows soft-deleted before buses were purged.
func ReleaseDriver(tx *gorm.DB, driverID, exceptBusID uint) error {
	return tx.Unscoped().Model(&models.Bus{}).
		Where("driver_id = ? AND id <> ?", driverID, exceptBusID).
		Update("driver_id", nil).Error
}
