package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/rto-lookup/hub"
	"github.com/yeremiapane/rto-lookup/models"
	"github.com/yeremiapane/rto-lookup/utils"
)

type PaymentStreamController struct {
	Lookups  LookupFlow
	Hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewPaymentStreamController accepts upgrades from allowedOrigins only; a "*"
// entry allows any origin.
func NewPaymentStreamController(lookups LookupFlow, h *hub.Hub, allowedOrigins []string) *PaymentStreamController {
	return &PaymentStreamController{
		Lookups: lookups,
		Hub:     h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || strings.EqualFold(allowed, origin) {
						return true
					}
				}
				return false
			},
		},
	}
}

type errorEvent struct {
	Kind    string `json:"kind"`
	Cause   string `json:"cause,omitempty"`
	Message string `json:"message"`
}

type vehicleEvent struct {
	Vehicle     *models.VehicleLookupResult `json:"vehicle,omitempty"`
	UnlockToken string                      `json:"unlockToken,omitempty"`
	Message     string                      `json:"message,omitempty"`
}

// StreamPayment -> websocket that reconciles an order and, once paid, runs
// the vehicle lookup. Closing the socket stops the polling.
func (sc *PaymentStreamController) StreamPayment(c *gin.Context) {
	orderID := c.Param("order_id")
	vehicleNumber := c.Query("vehicleNumber")

	ws, err := sc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Error(logrus.Fields{"order_id": orderID}).Warnf("websocket upgrade failed: %v", err)
		return
	}
	sc.Hub.Register(ws, orderID)
	defer sc.Hub.Unregister(ws)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Read loop: the client sends nothing, a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := utils.Info(logrus.Fields{
		"order_id":       orderID,
		"vehicle_number": vehicleNumber,
		"watchers":       sc.Hub.Watching(orderID),
	})
	log.Info("payment stream opened")

	outcome, err := sc.Lookups.CompleteLookup(ctx, orderID, vehicleNumber, func(status models.PaymentStatus) {
		sc.Hub.Send(ws, hub.Message{Event: hub.EventPaymentStatus, Data: status})
	})

	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		log.Info("payment stream closed by client")
		return
	case outcome == nil && err != nil:
		kind, cause, message := errorBody(err)
		sc.Hub.Send(ws, hub.Message{Event: hub.EventError, Data: errorEvent{Kind: kind, Cause: cause, Message: message}})
	case outcome != nil && outcome.Vehicle != nil:
		sc.Hub.Send(ws, hub.Message{Event: hub.EventVehicleResult, Data: vehicleEvent{
			Vehicle:     outcome.Vehicle,
			UnlockToken: outcome.UnlockToken,
		}})
	case outcome != nil && outcome.Payment.Successful():
		_, _, message := errorBody(err)
		sc.Hub.Send(ws, hub.Message{Event: hub.EventVehicleError, Data: vehicleEvent{
			UnlockToken: outcome.UnlockToken,
			Message:     message,
		}})
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	log.Info("payment stream finished")
}
