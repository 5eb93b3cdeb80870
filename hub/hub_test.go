package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/rto-lookup/utils"
)

func init() {
	utils.InitDiscardLogger()
}

// serve upgrades one connection, registers it and hands it to the test.
func serve(t *testing.T, h *Hub, orderID string) (*websocket.Conn, <-chan *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade() error = %v", err)
			return
		}
		h.Register(conn, orderID)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, serverConns
}

func TestHub_SendAndUnregister(t *testing.T) {
	h := NewHub()
	client, serverConns := serve(t, h, "VEH1")
	conn := <-serverConns

	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1, h.Watching("VEH1"))
	assert.Equal(t, 0, h.Watching("VEH2"))

	require.NoError(t, h.Send(conn, Message{Event: EventPaymentStatus, Data: map[string]string{"classification": "pending"}}))

	var msg Message
	client.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, client.ReadJSON(&msg))
	assert.Equal(t, EventPaymentStatus, msg.Event)
	assert.Equal(t, map[string]interface{}{"classification": "pending"}, msg.Data)

	h.Unregister(conn)
	h.Unregister(conn)
	assert.Equal(t, 0, h.Count())
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub()
	client, serverConns := serve(t, h, "VEH1")
	<-serverConns

	h.CloseAll()
	assert.Equal(t, 0, h.Count())

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
