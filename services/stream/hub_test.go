package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stocktracker_backend/models"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub never reached %d clients", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsSnapshots(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	hub.SnapshotStored(&models.PriceSnapshot{
		StockID:  3,
		Price:    decimal.RequireFromString("150.25"),
		IsLatest: true,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "price", msg.Type)
	assert.NotEmpty(t, msg.Time)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["stock_id"])
}

func TestHubBroadcastsAlerts(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	hub.AlertsTriggered([]models.Alert{
		{ID: 9, StockID: 3, AlertType: models.AlertTypePriceBelow},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "alert", msg.Type)
}

func TestHubPublishWithoutClients(t *testing.T) {
	hub := NewHub()

	// No clients connected; publishing must not block or panic
	for i := 0; i < 10; i++ {
		hub.SnapshotStored(&models.PriceSnapshot{StockID: 1})
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubClientDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
