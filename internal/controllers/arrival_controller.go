package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"qr_transit/internal/arrivals"
)

// ArrivalFinder answers arrivals queries. *arrivals.Service implements it.
type ArrivalFinder interface {
	Arrivals(ctx context.Context, stopID uint, passenger *arrivals.Coordinate) (arrivals.Result, error)
	ArrivalsByCode(ctx context.Context, code string, passenger *arrivals.Coordinate) (arrivals.Result, error)
}

// ArrivalController serves the passenger-facing arrivals endpoints.
type ArrivalController struct {
	finder ArrivalFinder
}

func NewArrivalController(finder ArrivalFinder) *ArrivalController {
	return &ArrivalController{finder: finder}
}

// ByID handles GET /api/stops/:id/arrivals?lat=&lng=.
// lat and lng are optional; an incomplete or invalid pair is ignored.
func (ac *ArrivalController) ByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop ID"})
		return
	}
	passenger := arrivals.ParsePassenger(c.Query("lat"), c.Query("lng"))
	res, err := ac.finder.Arrivals(c.Request.Context(), uint(id), passenger)
	ac.respond(c, res, err)
}

// ByCode handles GET /api/stops/code/:code/arrivals, the target of stop QR codes.
func (ac *ArrivalController) ByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing stop code"})
		return
	}
	passenger := arrivals.ParsePassenger(c.Query("lat"), c.Query("lng"))
	res, err := ac.finder.ArrivalsByCode(c.Request.Context(), code, passenger)
	ac.respond(c, res, err)
}

func (ac *ArrivalController) respond(c *gin.Context, res arrivals.Result, err error) {
	if err != nil {
		if errors.Is(err, arrivals.ErrStopNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Stop not found"})
			return
		}
		logrus.WithError(err).WithField("path", c.FullPath()).Error("arrivals lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not compute arrivals"})
		return
	}
	c.JSON(http.StatusOK, res)
}
