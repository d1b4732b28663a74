package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"qr_transit/internal/config"
	"qr_transit/internal/middleware"
	"qr_transit/internal/models"
	"qr_transit/internal/repository"
)

type adminInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
}

// LoginUser exchanges email and password for a JWT.
func LoginUser(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := config.DB.Where("email = ?", normalizeEmail(body.Email)).
		Preload("Driver").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found or invalid credentials"})
		} else {
			logrus.WithError(err).Error("LoginUser: database error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found or invalid credentials"})
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User logged in.")
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  prepareUserResponse(user),
	})
}

// BootstrapAdmin creates the first admin account. It is refused once any admin exists.
func BootstrapAdmin(c *gin.Context) {
	var input adminInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var admins int64
		if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
			return err
		}
		if admins > 0 {
			return errAdminExists
		}
		var createErr error
		user, createErr = createUserRecord(tx, input, models.RoleAdmin)
		return createErr
	})
	if err != nil {
		respondUserCreateError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	logrus.WithField("user_id", user.ID).Warn("Initial admin account bootstrapped.")
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": prepareUserResponse(user)})
}

// CreateAdmin lets an admin add another admin account.
func CreateAdmin(c *gin.Context) {
	var input adminInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := createUserRecord(config.DB, input, models.RoleAdmin)
	if err != nil {
		respondUserCreateError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": prepareUserResponse(user)})
}

func ListAdmins(c *gin.Context) {
	var admins []models.User
	if err := config.DB.Where("role = ?", models.RoleAdmin).Order("id").Find(&admins).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing admins: " + err.Error()})
		return
	}

	data := make([]gin.H, 0, len(admins))
	for _, a := range admins {
		data = append(data, prepareUserResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// DeleteAdmin removes another admin account. Admins cannot delete themselves.
func DeleteAdmin(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid admin ID"})
		return
	}
	if uint(id) == middleware.CurrentUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	n, err := repository.PurgeAdmin(config.DB, uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete admin: " + err.Error()})
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Admin deleted"})
}

var errAdminExists = errors.New("an admin account already exists")

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func createUserRecord(tx *gorm.DB, input adminInput, role string) (models.User, error) {
	hashed, err := hashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		Name:     input.Name,
		Email:    normalizeEmail(input.Email),
		Password: hashed,
		Phone:    input.Phone,
		Role:     role,
	}
	if err := tx.Create(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func respondUserCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errAdminExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case repository.IsUniqueViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
	default:
		logrus.WithError(err).Error("could not create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user: " + err.Error()})
	}
}

func prepareUserResponse(user models.User) gin.H {
	responseUser := gin.H{
		"ID":        user.ID,
		"CreatedAt": user.CreatedAt,
		"UpdatedAt": user.UpdatedAt,
		"name":      user.Name,
		"email":     user.Email,
		"phone":     user.Phone,
		"role":      user.Role,
	}

	if user.Driver != nil {
		responseUser["driver"] = gin.H{
			"ID":             user.Driver.ID,
			"name":           user.Driver.Name,
			"phone":          user.Driver.Phone,
			"license_number": user.Driver.LicenseNumber,
		}
	}
	return responseUser
}
