package models

import "gorm.io/gorm"

const (
	RoleAdmin  = "admin"
	RoleDriver = "driver"
)

type User struct {
	gorm.Model
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-"`
	Phone    string `json:"phone"`
	Role     string `json:"role" gorm:"index"` // "admin" or "driver"

	Driver *Driver `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"driver,omitempty"`
}
