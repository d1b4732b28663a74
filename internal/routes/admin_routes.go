package routes

import (
	"github.com/gin-gonic/gin"

	"qr_transit/internal/controllers"
	"qr_transit/internal/middleware"
	"qr_transit/internal/models"
)

func AdminRoutes(r *gin.Engine) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuthWithRole(models.RoleAdmin))
	{
		admin.POST("/admins", controllers.CreateAdmin)
		admin.GET("/admins", controllers.ListAdmins)
		admin.DELETE("/admins/:id", controllers.DeleteAdmin)

		admin.POST("/drivers", controllers.CreateDriver)
		admin.GET("/drivers", controllers.ListDrivers)
		admin.GET("/drivers/:id", controllers.GetDriver)
		admin.PUT("/drivers/:id", controllers.UpdateDriver)
		admin.DELETE("/drivers/:id", controllers.DeleteDriver)

		admin.POST("/stops", controllers.CreateStop)
		admin.GET("/stops", controllers.ListStops)
		admin.GET("/stops/:id", controllers.GetStop)
		admin.PUT("/stops/:id", controllers.UpdateStop)
		admin.DELETE("/stops/:id", controllers.DeleteStop)

		admin.POST("/routes", controllers.CreateRoute)
		admin.GET("/routes", controllers.ListRoutes)
		admin.GET("/routes/:id", controllers.GetRoute)
		admin.PUT("/routes/:id", controllers.UpdateRoute)
		admin.PUT("/routes/:id/stops", controllers.ReplaceRouteStops)
		admin.DELETE("/routes/:id", controllers.DeleteRoute)

		admin.POST("/buses", controllers.CreateBus)
		admin.GET("/buses", controllers.ListBuses)
		admin.GET("/buses/:id", controllers.GetBus)
		admin.PUT("/buses/:id", controllers.UpdateBus)
		admin.DELETE("/buses/:id", controllers.DeleteBus)
		admin.PUT("/buses/:id/route", controllers.AssignBusRoute)
		admin.PUT("/buses/:id/driver", controllers.AssignBusDriver)
	}
}
