package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"qr_transit/internal/config"
	"qr_transit/internal/middleware"
	"qr_transit/internal/models"
	"qr_transit/internal/repository"
)

type createDriverInput struct {
	adminInput
	DriverPhone   string `json:"driver_phone"`
	LicenseNumber string `json:"license_number" binding:"required"`
}

// updateDriverInput carries optional changes to both the account and the driver profile.
type updateDriverInput struct {
	UserName     *string `json:"name"`
	UserEmail    *string `json:"email" binding:"omitempty,email"`
	UserPhone    *string `json:"phone"`
	UserPassword *string `json:"password" binding:"omitempty,min=8"`

	DriverPhone   *string `json:"driver_phone"`
	LicenseNumber *string `json:"license_number"`
}

// CreateDriver creates a driver account and its profile in one transaction.
func CreateDriver(c *gin.Context) {
	var input createDriverInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = createUserRecord(tx, input.adminInput, models.RoleDriver)
		if err != nil {
			return err
		}
		phone := input.DriverPhone
		if phone == "" {
			phone = input.Phone
		}
		driver := models.Driver{
			UserID:        user.ID,
			Name:          input.Name,
			Phone:         phone,
			LicenseNumber: input.LicenseNumber,
		}
		if err := tx.Create(&driver).Error; err != nil {
			return err
		}
		user.Driver = &driver
		return nil
	})
	if err != nil {
		respondUserCreateError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"driver_profile": prepareUserResponse(user)})
}

// ListDrivers fetches all users with the driver role and their profiles.
func ListDrivers(c *gin.Context) {
	var users []models.User
	if err := config.DB.Where("role = ?", models.RoleDriver).
		Preload("Driver").
		Order("id").
		Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing drivers: " + err.Error()})
		return
	}

	driverProfiles := make([]gin.H, 0, len(users))
	for _, user := range users {
		driverProfiles = append(driverProfiles, prepareUserResponse(user))
	}
	c.JSON(http.StatusOK, gin.H{"data": driverProfiles})
}

// GetDriver fetches a single driver by their UserID.
func GetDriver(c *gin.Context) {
	user, ok := loadDriverUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver_profile": prepareUserResponse(user)})
}

// UpdateDriver modifies account-level and driver-specific details.
func UpdateDriver(c *gin.Context) {
	user, ok := loadDriverUser(c)
	if !ok {
		return
	}

	var input updateDriverInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if input.UserName != nil {
		user.Name = *input.UserName
	}
	if input.UserEmail != nil {
		user.Email = normalizeEmail(*input.UserEmail)
	}
	if input.UserPhone != nil {
		user.Phone = *input.UserPhone
	}
	if input.UserPassword != nil {
		hashed, err := hashPassword(*input.UserPassword)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password."})
			return
		}
		user.Password = hashed
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Driver").Save(&user).Error; err != nil {
			return err
		}
		if user.Driver == nil {
			logrus.WithField("user_id", user.ID).Warn("UpdateDriver: driver account has no profile")
			return nil
		}
		if input.UserName != nil {
			user.Driver.Name = *input.UserName
		}
		if input.DriverPhone != nil {
			user.Driver.Phone = *input.DriverPhone
		}
		if input.LicenseNumber != nil {
			user.Driver.LicenseNumber = *input.LicenseNumber
		}
		return tx.Save(user.Driver).Error
	})
	if err != nil {
		respondUserCreateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Driver details updated successfully.",
		"driver_profile": prepareUserResponse(user),
	})
}

// DeleteDriver removes the driver account and profile and frees their bus.
func DeleteDriver(c *gin.Context) {
	user, ok := loadDriverUser(c)
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		return repository.PurgeDriverUser(tx, user)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete driver: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Driver and associated user account deleted successfully."})
}

// GetMyBus returns the bus assigned to the authenticated driver.
func GetMyBus(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var driver models.Driver
	if err := config.DB.Where("user_id = ?", userID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver profile not found for the authenticated user."})
			return
		}
		logrus.WithError(err).Error("GetMyBus: database error fetching driver profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch driver profile."})
		return
	}

	var bus models.Bus
	if err := config.DB.Preload("Route").Where("driver_id = ?", driver.ID).First(&bus).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No bus assigned to this driver."})
			return
		}
		logrus.WithError(err).Error("GetMyBus: database error fetching bus")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bus data."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

// loadDriverUser loads the driver account named by the :id parameter (a user id).
// It writes the error response itself and reports false on failure.
func loadDriverUser(c *gin.Context) (models.User, bool) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid User ID format."})
		return models.User{}, false
	}

	var user models.User
	if err := config.DB.Where("id = ? AND role = ?", userID, models.RoleDriver).
		Preload("Driver").
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver user not found."})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		}
		return models.User{}, false
	}
	return user, true
}
