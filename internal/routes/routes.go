package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"qr_transit/internal/controllers"
	"qr_transit/internal/metrics"
	"qr_transit/internal/middleware"
)

// Deps are the long-lived services the handlers need.
type Deps struct {
	Arrivals controllers.ArrivalFinder
	Reporter controllers.LocationReporter
	Watchers controllers.RouteWatchers
	Metrics  *metrics.Collector
}

// SetupRouter builds the engine with all route groups registered. It does not start serving.
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(ginlog.SetLogger(
		ginlog.WithWriter(logrus.StandardLogger().Out),
		ginlog.WithUTC(true),
		ginlog.WithSkipPath([]string{"/healthz", "/metrics"}),
	))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/healthz", controllers.Health)

	AuthRoutes(r)
	AdminRoutes(r)
	PublicRoutes(r, controllers.NewArrivalController(d.Arrivals))

	locations := controllers.NewLocationController(d.Reporter, d.Watchers)
	DriverRoutes(r, locations)
	WebSocketRoutes(r, locations)

	return r
}
