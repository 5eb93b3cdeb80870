package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/rto-lookup/hub"
	"github.com/yeremiapane/rto-lookup/models"
	"github.com/yeremiapane/rto-lookup/services"
	"github.com/yeremiapane/rto-lookup/utils"
)

// LookupFlow is the lookup session the HTTP layer drives.
type LookupFlow interface {
	StartLookup(ctx context.Context, vehicleNumber, mobile, redirectBase string) (*models.Order, error)
	CheckStatus(ctx context.Context, orderID, vehicleNumber string) (*services.LookupOutcome, error)
	CompleteLookup(ctx context.Context, orderID, vehicleNumber string, emit func(models.PaymentStatus)) (*services.LookupOutcome, error)
	LookupPaid(ctx context.Context, claims *utils.UnlockClaims) (*models.VehicleLookupResult, error)
}

// MetricsSource exposes reconciliation counters.
type MetricsSource interface {
	GetMetrics() services.PaymentMetrics
}

type PaymentController struct {
	Lookups       LookupFlow
	Metrics       MetricsSource
	Streams       *hub.Hub
	PublicBaseURL string
}

func NewPaymentController(lookups LookupFlow, metrics MetricsSource, streams *hub.Hub, publicBaseURL string) *PaymentController {
	return &PaymentController{
		Lookups:       lookups,
		Metrics:       metrics,
		Streams:       streams,
		PublicBaseURL: publicBaseURL,
	}
}

type createPaymentRequest struct {
	VehicleNumber  string `json:"vehicleNumber" binding:"required"`
	CustomerMobile string `json:"customerMobile" binding:"required"`
}

type createPaymentResponse struct {
	OrderID          string `json:"orderId"`
	PaymentURL       string `json:"paymentUrl"`
	VehicleNumber    string `json:"vehicleNumber"`
	Amount           string `json:"amount"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
}

// CreatePayment -> creates the gateway order for a vehicle lookup
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondKindError(c, http.StatusBadRequest, string(services.KindInvalidInput), "bad_request",
			"vehicleNumber and customerMobile are required")
		return
	}

	order, err := pc.Lookups.StartLookup(c.Request.Context(), req.VehicleNumber, req.CustomerMobile, pc.PublicBaseURL)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Payment order created", createPaymentResponse{
		OrderID:          order.OrderID,
		PaymentURL:       order.PaymentURL,
		VehicleNumber:    order.VehicleNumber,
		Amount:           utils.FormatINR(order.AmountMinorUnits),
		AmountMinorUnits: order.AmountMinorUnits,
	})
}

// GetPaymentStatus -> one reconciliation step for an order
func (pc *PaymentController) GetPaymentStatus(c *gin.Context) {
	outcome, err := pc.Lookups.CheckStatus(c.Request.Context(), c.Param("order_id"), c.Query("vehicleNumber"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, outcome.Payment.Message, outcome)
}

type metricsResponse struct {
	services.PaymentMetrics
	ActiveStreams int `json:"activeStreams"`
}

// GetMetrics -> reconciliation counters
func (pc *PaymentController) GetMetrics(c *gin.Context) {
	resp := metricsResponse{PaymentMetrics: pc.Metrics.GetMetrics()}
	if pc.Streams != nil {
		resp.ActiveStreams = pc.Streams.Count()
	}
	utils.RespondJSON(c, http.StatusOK, "Payment metrics", resp)
}
