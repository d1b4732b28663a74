// internal/models/driver.go
package models

import (
	"gorm.io/gorm"
)

// Driver is the operating profile of a user with the driver role.
// Name and Phone may differ from the account's.
type Driver struct {
	gorm.Model
	UserID        uint   `json:"user_id" gorm:"uniqueIndex"`
	User          User   `gorm:"foreignKey:UserID" json:"-"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"license_number"`
}
