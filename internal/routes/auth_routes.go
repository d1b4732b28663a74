package routes

import (
	"github.com/gin-gonic/gin"

	"qr_transit/internal/controllers"
)

func AuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", controllers.LoginUser)
		auth.POST("/bootstrap", controllers.BootstrapAdmin)
	}
}
