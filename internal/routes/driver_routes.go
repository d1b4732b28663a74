package routes

import (
	"github.com/gin-gonic/gin"

	"qr_transit/internal/controllers"
	"qr_transit/internal/middleware"
	"qr_transit/internal/models"
)

func DriverRoutes(r *gin.Engine, locations *controllers.LocationController) {
	driver := r.Group("/driver")
	driver.Use(middleware.RequireAuthWithRole(models.RoleDriver))
	{
		driver.GET("/bus", controllers.GetMyBus)
		driver.POST("/location", locations.PostLocation)
	}
}
