package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/rto-lookup/utils"
)

// Event types
const (
	EventPaymentStatus = "payment_status"
	EventVehicleResult = "vehicle_result"
	EventVehicleError  = "vehicle_error"
	EventError         = "error"
)

const writeWait = 10 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks the websocket clients watching a payment, keyed by connection.
type Hub struct {
	clients map[*websocket.Conn]string // conn -> order id
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]string)}
}

// Register adds a connection watching orderID.
func (h *Hub) Register(conn *websocket.Conn, orderID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = orderID
}

// Unregister removes and closes a connection. Safe to call twice.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mutex.Unlock()

	if ok {
		conn.Close()
	}
}

// Watching returns the number of clients watching orderID.
func (h *Hub) Watching(orderID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	n := 0
	for _, id := range h.clients {
		if id == orderID {
			n++
		}
	}
	return n
}

func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Send writes one message to a single client.
func (h *Hub) Send(conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		utils.Error(logrus.Fields{"event": msg.Event}).Warnf("error sending message to client: %v", err)
		return err
	}
	return nil
}

// CloseAll sends a going-away close frame to every client and drops them.
func (h *Hub) CloseAll() {
	h.mutex.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]string)
	h.mutex.Unlock()

	closing := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second))
		conn.Close()
	}
	if len(conns) > 0 {
		utils.Info(logrus.Fields{"clients": len(conns)}).Info("closed websocket clients")
	}
}
