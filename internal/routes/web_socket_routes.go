package routes

import (
	"github.com/gin-gonic/gin"

	"qr_transit/internal/controllers"
)

// WebSocketRoutes authenticate inside the handler since browsers cannot set headers on
// WebSocket upgrades.
func WebSocketRoutes(r *gin.Engine, locations *controllers.LocationController) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/location", locations.DriverSocket)
		wsRoutes.GET("/routes/:id", locations.WatchRoute)
	}
}
