package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func dialTestHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	assert.NoError(t, err)
	var msg Message
	assert.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connected clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_FanOutReachesEverySession(t *testing.T) {
	hub := NewHub(5*time.Second, 30*time.Second)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dialTestHub(t, srv)
	second := dialTestHub(t, srv)
	waitForClients(t, hub, 2)

	hub.Broadcast("bikeData", map[string]string{"bikeId": "BIKE001"})
	hub.Broadcast("bikeUpdate", map[string]string{"bikeId": "BIKE001"})

	// Both sessions receive both events in publish order, with no
	// per-subscriber filtering.
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, "bikeData", msg.Event)
		msg = readMessage(t, conn)
		assert.Equal(t, "bikeUpdate", msg.Event)
	}
}

func TestHub_DisconnectRemovesSession(t *testing.T) {
	hub := NewHub(5*time.Second, 30*time.Second)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialTestHub(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting with no sessions is a no-op.
	hub.Broadcast("bikeData", map[string]string{"bikeId": "BIKE001"})
}

func TestHub_BroadcastSkipsUnencodablePayload(t *testing.T) {
	hub := NewHub(5*time.Second, 30*time.Second)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialTestHub(t, srv)
	waitForClients(t, hub, 1)

	hub.Broadcast("bikeData", make(chan int))
	hub.Broadcast("bikeUpdate", map[string]string{"bikeId": "BIKE001"})

	msg := readMessage(t, conn)
	assert.Equal(t, "bikeUpdate", msg.Event)
}
