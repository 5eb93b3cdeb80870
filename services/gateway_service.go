package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yeremiapane/rto-lookup/config"
	"github.com/yeremiapane/rto-lookup/models"
	"github.com/yeremiapane/rto-lookup/utils"
)

const (
	createOrderPath = "/api/create-order"
	orderStatusPath = "/api/check-order-status"

	orderRemarkLabel = "RTO Vehicle Information"
	orderRoute       = "1"

	// FailureVendorDeclined marks a Failed status reported by the gateway itself.
	FailureVendorDeclined = "vendor_declined"
)

var mobilePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)

// GatewayConfig holds UPI gateway configuration
type GatewayConfig struct {
	BaseURL   string
	UserToken string
	Timeout   time.Duration
}

// GatewayService handles the UPI gateway: order creation and order status.
type GatewayService struct {
	config     *GatewayConfig
	client     *resty.Client
	now        func() time.Time
	newOrderID func(time.Time) string
}

// NewGatewayService fails with NotConfigured when the user token is missing,
// so no request can ever be built without it.
func NewGatewayService(cfg *GatewayConfig) (*GatewayService, error) {
	if cfg == nil || strings.TrimSpace(cfg.UserToken) == "" {
		return nil, newError(KindNotConfigured, "", "PAYMENT_GATEWAY_TOKEN is not set", config.ErrGatewayNotConfigured)
	}
	if cfg.BaseURL == "" {
		return nil, newError(KindNotConfigured, "", "PAYMENT_GATEWAY_URL is not set", nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	client := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &GatewayService{
		config:     cfg,
		client:     client,
		now:        time.Now,
		newOrderID: generateOrderID,
	}, nil
}

// NewGatewayServiceFromConfig builds the service from the process configuration.
func NewGatewayServiceFromConfig(cfg *config.Config) (*GatewayService, error) {
	if cfg == nil {
		return NewGatewayService(nil)
	}
	return NewGatewayService(&GatewayConfig{
		BaseURL:   cfg.GatewayBaseURL,
		UserToken: cfg.GatewayUserToken,
		Timeout:   cfg.GatewayTimeout,
	})
}

// ValidateMobile checks a payer mobile number: 10 digits, first digit 6-9.
func ValidateMobile(mobile string) error {
	if !mobilePattern.MatchString(mobile) {
		return invalidInput(CauseInvalidMobile, "mobile number must be 10 digits starting with 6-9")
	}
	return nil
}

// NormalizeVehicleNumber removes all whitespace and upper-cases the number.
func NormalizeVehicleNumber(vehicleNumber string) string {
	return strings.ToUpper(strings.Join(strings.Fields(vehicleNumber), ""))
}

func generateOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "VEH" + strconv.FormatInt(now.UnixMilli(), 10) + suffix
}

// RedirectURL is the page the gateway sends the payer back to.
func RedirectURL(base, orderID, vehicleNumber string) string {
	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("vehicleNumber", vehicleNumber)
	return strings.TrimRight(base, "/") + "/payment-status?" + q.Encode()
}

// CreateOrder creates a payment order for one vehicle lookup. The payer is
// sent back to RedirectURL(redirectBase, ...) once the payment page closes.
func (gs *GatewayService) CreateOrder(ctx context.Context, vehicleNumber, mobile, redirectBase string) (*models.Order, error) {
	vehicleNumber = NormalizeVehicleNumber(vehicleNumber)
	mobile = strings.TrimSpace(mobile)

	if vehicleNumber == "" {
		return nil, invalidInput(CauseEmptyVehicle, "vehicle number is required")
	}
	if err := ValidateMobile(mobile); err != nil {
		return nil, err
	}

	now := gs.now()
	order := &models.Order{
		OrderID:          gs.newOrderID(now),
		VehicleNumber:    vehicleNumber,
		CustomerMobile:   mobile,
		AmountMinorUnits: models.LookupFeeMinorUnits,
		CreatedAt:        now,
	}

	log := utils.Info(logrus.Fields{
		"order_id":       order.OrderID,
		"vehicle_number": vehicleNumber,
		"mobile":         utils.MaskMobile(mobile),
		"payer":          utils.MobileFingerprint(mobile),
	})
	log.Info("creating payment order")

	resp, err := gs.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"customer_mobile": mobile,
			"user_token":      gs.config.UserToken,
			"amount":          order.AmountRupees(),
			"order_id":        order.OrderID,
			"redirect_url":    RedirectURL(redirectBase, order.OrderID, vehicleNumber),
			"remark1":         "Vehicle lookup for " + vehicleNumber,
			"remark2":         orderRemarkLabel,
			"route":           orderRoute,
		}).
		Post(createOrderPath)
	if err != nil {
		return nil, transportError("create order", err)
	}

	env, perr := decodeEnvelope(resp, KindOrderCreationFailed)
	if perr != nil {
		gs.logGatewayError(order.OrderID, "create order", perr, resp)
		return nil, perr
	}

	if env.Status == nil || !*env.Status {
		perr := newError(KindOrderCreationFailed, CauseRejected, env.vendorMessage("failed to create payment order"), nil)
		gs.logGatewayError(order.OrderID, "create order", perr, resp)
		return nil, perr
	}

	var result struct {
		PaymentURL string     `json:"payment_url"`
		OrderID    flexString `json:"orderId"`
	}
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			perr := newError(KindOrderCreationFailed, CauseMalformedJSON, "result is not an object", err)
			gs.logGatewayError(order.OrderID, "create order", perr, resp)
			return nil, perr
		}
	}
	if strings.TrimSpace(result.PaymentURL) == "" {
		perr := newError(KindOrderCreationFailed, CauseMissingPaymentURL, "payment URL not received from payment gateway", nil)
		gs.logGatewayError(order.OrderID, "create order", perr, resp)
		return nil, perr
	}
	if echoed := string(result.OrderID); echoed != "" && echoed != order.OrderID {
		perr := newError(KindOrderCreationFailed, CauseOrderIDMismatch,
			fmt.Sprintf("gateway returned order id %q for %q", echoed, order.OrderID), nil)
		gs.logGatewayError(order.OrderID, "create order", perr, resp)
		return nil, perr
	}

	order.PaymentURL = strings.TrimSpace(result.PaymentURL)
	log.Info("payment order created")
	return order, nil
}

// CheckOrderStatus performs one status round trip and classifies the answer.
// A vendor-declared failure is returned as a Failed status, not an error;
// errors are reserved for transport, protocol and rejected requests.
func (gs *GatewayService) CheckOrderStatus(ctx context.Context, orderID string) (models.PaymentStatus, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" || orderID == "null" || orderID == "undefined" {
		return models.PaymentStatus{}, invalidInput(CauseEmptyOrderID, "order id is required")
	}

	resp, err := gs.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"user_token": gs.config.UserToken,
			"order_id":   orderID,
		}).
		Post(orderStatusPath)
	if err != nil {
		return models.PaymentStatus{}, transportError("check status", err)
	}

	env, perr := decodeEnvelope(resp, KindGatewayProtocolError)
	if perr != nil {
		gs.logGatewayError(orderID, "check status", perr, resp)
		return models.PaymentStatus{}, perr
	}

	if env.Status == nil {
		perr := newError(KindGatewayProtocolError, CauseMissingStatusFlag, "status flag missing from gateway response", nil)
		gs.logGatewayError(orderID, "check status", perr, resp)
		return models.PaymentStatus{}, perr
	}
	if !*env.Status {
		perr := newError(KindStatusCheckFailed, CauseRejected, env.vendorMessage("payment check failed"), nil)
		gs.logGatewayError(orderID, "check status", perr, resp)
		return models.PaymentStatus{}, perr
	}

	var result struct {
		TxnStatus flexString `json:"txnStatus"`
		UTR       flexString `json:"utr"`
		OrderID   flexString `json:"orderId"`
		Amount    flexString `json:"amount"`
		Date      flexString `json:"date"`
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		perr := newError(KindGatewayProtocolError, CauseMissingResult, "result missing from gateway response", nil)
		gs.logGatewayError(orderID, "check status", perr, resp)
		return models.PaymentStatus{}, perr
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		perr := newError(KindGatewayProtocolError, CauseMalformedJSON, "result is not an object", err)
		gs.logGatewayError(orderID, "check status", perr, resp)
		return models.PaymentStatus{}, perr
	}
	if echoed := string(result.OrderID); echoed != "" && echoed != orderID {
		perr := newError(KindGatewayProtocolError, CauseOrderIDMismatch,
			fmt.Sprintf("gateway returned status for order %q instead of %q", echoed, orderID), nil)
		gs.logGatewayError(orderID, "check status", perr, resp)
		return models.PaymentStatus{}, perr
	}

	status := models.PaymentStatus{
		OrderID:      orderID,
		RawTxnStatus: strings.TrimSpace(string(result.TxnStatus)),
		UTR:          strings.TrimSpace(string(result.UTR)),
		Amount:       string(result.Amount),
		Date:         string(result.Date),
		CheckedAt:    gs.now(),
	}
	status.Classification = ClassifyTransaction(status.RawTxnStatus, status.UTR)
	if status.Classification == models.ClassificationFailed {
		status.FailureKind = FailureVendorDeclined
		status.Reason = failureReason(status.RawTxnStatus)
	}

	utils.Info(logrus.Fields{
		"order_id":       orderID,
		"txn_status":     status.RawTxnStatus,
		"has_utr":        status.UTR != "",
		"classification": status.Classification,
	}).Info("payment status checked")

	return status, nil
}

// ClassifyTransaction derives the classification from the raw status and UTR
// together. SUCCESS only counts once a settlement reference is present.
// Status values are matched exactly; "success" is not SUCCESS.
func ClassifyTransaction(rawTxnStatus, utr string) models.Classification {
	switch rawTxnStatus {
	case models.TxnStatusSuccess:
		if strings.TrimSpace(utr) != "" {
			return models.ClassificationSuccessful
		}
		return models.ClassificationFailed
	case models.TxnStatusPending:
		return models.ClassificationPending
	case models.TxnStatusFailed, models.TxnStatusCancelled:
		return models.ClassificationFailed
	default:
		utils.Error(logrus.Fields{"txn_status": rawTxnStatus}).Warn("unrecognised txnStatus from payment gateway, treating as failed")
		return models.ClassificationFailed
	}
}

func failureReason(rawTxnStatus string) string {
	switch rawTxnStatus {
	case models.TxnStatusSuccess:
		return "gateway reported SUCCESS without a settlement reference (UTR)"
	case models.TxnStatusFailed, models.TxnStatusCancelled:
		return "gateway reported " + rawTxnStatus
	case "":
		return "gateway response carried no transaction status"
	default:
		return fmt.Sprintf("unrecognised transaction status %q", rawTxnStatus)
	}
}

// gatewayEnvelope is the outer shape of every gateway response.
type gatewayEnvelope struct {
	Status  *bool           `json:"status"`
	Message flexString      `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (e *gatewayEnvelope) vendorMessage(fallback string) string {
	if msg := strings.TrimSpace(string(e.Message)); msg != "" {
		return msg
	}
	return fallback
}

// decodeEnvelope applies the checks shared by both endpoints. protocolKind is
// the kind reported for content the gateway should never send.
func decodeEnvelope(resp *resty.Response, protocolKind ErrorKind) (*gatewayEnvelope, *PaymentError) {
	switch resp.StatusCode() {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, newError(KindGatewayUnavailable, CauseHTTPStatus, "payment gateway returned "+resp.Status(), nil)
	}

	contentType := strings.ToLower(resp.Header().Get("Content-Type"))
	if !strings.Contains(contentType, "json") {
		return nil, newError(protocolKind, CauseNonJSON,
			fmt.Sprintf("payment gateway returned %q (HTTP %d)", contentType, resp.StatusCode()), nil)
	}

	var env gatewayEnvelope
	body := bytes.TrimSpace(resp.Body())
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, newError(protocolKind, CauseMalformedJSON, "invalid response from payment gateway", err)
	}

	if resp.IsError() && (env.Status == nil || *env.Status) {
		return nil, newError(protocolKind, CauseHTTPStatus, "payment gateway returned "+resp.Status(), nil)
	}
	return &env, nil
}

func transportError(op string, err error) *PaymentError {
	reason := "payment gateway is temporarily unavailable"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "payment gateway did not answer in time"
	}
	return newError(KindGatewayUnavailable, CauseTransport, reason, fmt.Errorf("%s: %w", op, err))
}

func (gs *GatewayService) logGatewayError(orderID, op string, perr *PaymentError, resp *resty.Response) {
	fields := logrus.Fields{
		"order_id": orderID,
		"kind":     perr.Kind,
		"cause":    perr.Cause,
		"protocol": perr.IsProtocolError(),
	}
	if resp != nil {
		fields["http_status"] = resp.StatusCode()
		body := resp.Body()
		if len(body) > 512 {
			body = body[:512]
		}
		fields["body"] = string(body)
	}
	utils.Error(fields).Errorf("payment gateway %s failed: %v", op, perr)
}

// flexString accepts JSON strings, numbers and null. The gateway is not
// consistent about how it encodes ids, amounts and UTRs.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}
