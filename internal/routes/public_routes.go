package routes

import (
	"github.com/gin-gonic/gin"

	"qr_transit/internal/controllers"
)

// PublicRoutes are open to passengers without an account.
func PublicRoutes(r *gin.Engine, arrivals *controllers.ArrivalController) {
	api := r.Group("/api")
	{
		api.GET("/stops/:id", controllers.GetStop)
		api.GET("/stops/:id/arrivals", arrivals.ByID)
		api.GET("/stops/code/:code/arrivals", arrivals.ByCode)
		api.GET("/routes/:id/geometry", controllers.GetRouteGeometry)
	}
}
