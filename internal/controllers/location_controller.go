package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"qr_transit/internal/middleware"
	"qr_transit/internal/models"
	"qr_transit/internal/tracking"
)

const driverReadWait = 90 * time.Second

// LocationReporter applies a driver's position report. *tracking.Tracker implements it.
type LocationReporter interface {
	Report(ctx context.Context, userID uint, r tracking.Report) (tracking.BusMoved, error)
}

// RouteWatchers serves watcher connections for a route. *hub.LocationHub implements it.
type RouteWatchers interface {
	Serve(routeID uint, conn *websocket.Conn)
}

// LocationController ingests driver positions and serves live route feeds.
type LocationController struct {
	reporter LocationReporter
	watchers RouteWatchers
	upgrader websocket.Upgrader
}

func NewLocationController(reporter LocationReporter, watchers RouteWatchers) *LocationController {
	return &LocationController{
		reporter: reporter,
		watchers: watchers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Driver apps and passenger pages connect from any origin; auth is the token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// PostLocation handles POST /driver/location for drivers without a socket.
func (lc *LocationController) PostLocation(c *gin.Context) {
	var report tracking.Report
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location data: " + err.Error()})
		return
	}

	event, err := lc.reporter.Report(c.Request.Context(), middleware.CurrentUserID(c), report)
	if err != nil {
		status, msg := reportErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "update": event})
}

// DriverSocket handles GET /ws/location?token=. Each text frame is one position report and
// is answered with an ack or an error frame on the same connection.
func (lc *LocationController) DriverSocket(c *gin.Context) {
	userID, err := authenticateDriverSocket(c)
	if err != nil {
		logrus.WithError(err).Warn("Driver WebSocket connection attempt rejected.")
		status := http.StatusUnauthorized
		if errors.Is(err, errWrongRole) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := lc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	log := logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"conn_ptr": fmt.Sprintf("%p", conn),
	})
	log.Info("Driver WebSocket connection established.")

	conn.SetReadLimit(4096)
	for {
		conn.SetReadDeadline(time.Now().Add(driverReadWait))
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Driver WebSocket closed unexpectedly.")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := conn.WriteJSON(lc.handleFrame(c.Request.Context(), userID, p)); err != nil {
			log.WithError(err).Warn("Failed to acknowledge driver report.")
			break
		}
	}
	log.Info("Driver WebSocket connection closed.")
}

func (lc *LocationController) handleFrame(ctx context.Context, userID uint, p []byte) gin.H {
	var report tracking.Report
	if err := json.Unmarshal(p, &report); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Unreadable driver location frame.")
		return gin.H{"error": "Invalid location data format. Check timestamp format."}
	}
	event, err := lc.reporter.Report(ctx, userID, report)
	if err != nil {
		_, msg := reportErrorStatus(err)
		return gin.H{"error": msg}
	}
	return gin.H{"status": "ok", "next_stop_index": event.NextStopIndex, "timestamp": event.Timestamp}
}

// WatchRoute handles GET /ws/routes/:id. Watchers receive every accepted position of buses
// on the route.
func (lc *LocationController) WatchRoute(c *gin.Context) {
	routeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || routeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	conn, err := lc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	lc.watchers.Serve(uint(routeID), conn)
}

var errWrongRole = errors.New("only drivers may stream locations")

// authenticateDriverSocket reads the JWT from the token query parameter, falling back to
// the Authorization header.
func authenticateDriverSocket(c *gin.Context) (uint, error) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token == "" {
		return 0, errors.New("missing authentication token")
	}

	claims, err := middleware.ValidateToken(token)
	if err != nil {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Role != models.RoleDriver {
		return 0, errWrongRole
	}
	return claims.UserID, nil
}

func reportErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, tracking.ErrInvalidLocation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, tracking.ErrNoAssignedBus):
		return http.StatusNotFound, err.Error()
	default:
		logrus.WithError(err).Error("location report failed")
		return http.StatusInternalServerError, "Could not save location"
	}
}
