package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qr_transit/internal/tracking"
)

type countingRecorder struct{ open atomic.Int64 }

func (r *countingRecorder) WatcherConnected()    { r.open.Add(1) }
func (r *countingRecorder) WatcherDisconnected() { r.open.Add(-1) }

func startHub(t *testing.T, routeID uint) (*LocationHub, *countingRecorder, string) {
	t.Helper()
	rec := &countingRecorder{}
	h := NewLocationHub(rec)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(routeID, conn)
	}))
	t.Cleanup(srv.Close)

	return h, rec, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLocationHub_BroadcastsToRouteWatchers(t *testing.T) {
	h, rec, url := startHub(t, 7)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Watchers(7) == 1 }, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, rec.open.Load())

	h.Publish(8, tracking.BusMoved{BusID: 99}) // other route, not delivered
	h.Publish(7, tracking.BusMoved{Type: "bus_moved", BusID: 3, RouteID: 7, NextStopIndex: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got tracking.BusMoved
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, uint(3), got.BusID)
	assert.Equal(t, 2, got.NextStopIndex)
}

func TestLocationHub_UnregistersOnClose(t *testing.T) {
	h, rec, url := startHub(t, 4)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Watchers(4) == 1 }, time.Second, 10*time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	require.Eventually(t, func() bool { return h.Watchers(4) == 0 }, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 0, rec.open.Load())
}
