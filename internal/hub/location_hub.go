// Package hub fans bus position events out to WebSocket clients watching a route.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"qr_transit/internal/tracking"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

type Recorder interface {
	WatcherConnected()
	WatcherDisconnected()
}

type message struct {
	routeID uint
	payload []byte
}

// LocationHub keeps the watchers of each route and broadcasts to them.
type LocationHub struct {
	mu        sync.Mutex
	watchers  map[uint]map[*Client]struct{}
	broadcast chan message
	recorder  Recorder
}

// Client is one watcher connection. Only its write pump writes to conn.
type Client struct {
	hub     *LocationHub
	routeID uint
	conn    *websocket.Conn
	send    chan []byte
}

// NewLocationHub returns a hub; call Run to start delivering.
func NewLocationHub(recorder Recorder) *LocationHub {
	return &LocationHub{
		watchers:  make(map[uint]map[*Client]struct{}),
		broadcast: make(chan message, 100),
		recorder:  recorder,
	}
}

// Run delivers published messages until ctx is cancelled.
func (h *LocationHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *LocationHub) deliver(msg message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.watchers[msg.routeID] {
		select {
		case c.send <- msg.payload:
		default:
			// Slow consumer; drop it rather than block the whole route.
			logrus.WithFields(logrus.Fields{
				"route_id": msg.routeID,
				"conn_ptr": fmt.Sprintf("%p", c.conn),
			}).Warn("Watcher send buffer full, disconnecting.")
			h.removeLocked(c)
		}
	}
}

// Publish queues event for the watchers of routeID. It never blocks.
func (h *LocationHub) Publish(routeID uint, event tracking.BusMoved) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode bus event for broadcast.")
		return
	}
	select {
	case h.broadcast <- message{routeID: routeID, payload: payload}:
	default:
		logrus.WithField("route_id", routeID).Warn("Location broadcast channel full, dropping message.")
	}
}

// Watchers returns the number of clients on routeID.
func (h *LocationHub) Watchers(routeID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[routeID])
}

// Register adds conn as a watcher of routeID.
func (h *LocationHub) Register(routeID uint, conn *websocket.Conn) *Client {
	c := &Client{hub: h, routeID: routeID, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if _, ok := h.watchers[routeID]; !ok {
		h.watchers[routeID] = make(map[*Client]struct{})
	}
	h.watchers[routeID][c] = struct{}{}
	if h.recorder != nil {
		h.recorder.WatcherConnected()
	}
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"route_id": routeID,
		"conn_ptr": fmt.Sprintf("%p", conn),
	}).Info("Watcher registered with LocationHub.")
	return c
}

// Unregister removes c; safe to call more than once.
func (h *LocationHub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *LocationHub) removeLocked(c *Client) {
	clients, ok := h.watchers[c.routeID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.watchers, c.routeID)
	}
	if h.recorder != nil {
		h.recorder.WatcherDisconnected()
	}
	logrus.WithFields(logrus.Fields{
		"route_id": c.routeID,
		"conn_ptr": fmt.Sprintf("%p", c.conn),
	}).Info("Watcher unregistered from LocationHub.")
}

func (h *LocationHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.watchers {
		for c := range clients {
			h.removeLocked(c)
		}
	}
}

// Serve registers conn for routeID and blocks until the connection ends.
func (h *LocationHub) Serve(routeID uint, conn *websocket.Conn) {
	c := h.Register(routeID, conn)
	go c.writePump()
	c.readPump()
}

// readPump discards client messages and unregisters on close.
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("route_id", c.routeID).Warn("Watcher connection closed unexpectedly.")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
