package services

import (
	"errors"
	"fmt"
)

// ErrorKind is the category every gateway-facing failure is converted into.
type ErrorKind string

const (
	KindInvalidInput         ErrorKind = "invalid_input"
	KindNotConfigured        ErrorKind = "not_configured"
	KindGatewayUnavailable   ErrorKind = "gateway_unavailable"
	KindGatewayProtocolError ErrorKind = "gateway_protocol_error"
	KindOrderCreationFailed  ErrorKind = "order_creation_failed"
	KindStatusCheckFailed    ErrorKind = "status_check_failed"
	KindTimeout              ErrorKind = "timeout"
)

// Causes keep the individual reasons of one kind apart in logs.
const (
	CauseInvalidMobile     = "invalid_mobile"
	CauseEmptyVehicle      = "empty_vehicle_number"
	CauseEmptyOrderID      = "empty_order_id"
	CauseTransport         = "transport"
	CauseHTTPStatus        = "http_status"
	CauseNonJSON           = "non_json_response"
	CauseMalformedJSON     = "malformed_json"
	CauseRejected          = "rejected"
	CauseMissingPaymentURL = "missing_payment_url"
	CauseMissingResult     = "missing_result"
	CauseMissingStatusFlag = "missing_status_flag"
	CauseOrderIDMismatch   = "order_id_mismatch"
)

// PaymentError is returned by the gateway, reconciler and lookup services.
// Nothing raw from the transport or the JSON decoder escapes those services.
type PaymentError struct {
	Kind   ErrorKind
	Cause  string
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	msg := string(e.Kind)
	if e.Cause != "" {
		msg += "(" + e.Cause + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentError) Unwrap() error { return e.Err }

// Is matches any *PaymentError of the same kind, so the sentinels below work
// with errors.Is. A sentinel with a cause also requires the cause to match.
func (e *PaymentError) Is(target error) bool {
	t, ok := target.(*PaymentError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Cause == "" || t.Cause == e.Cause
}

// IsProtocolError reports whether the gateway was reachable but answered with
// something outside its contract. Order creation reports these as
// OrderCreationFailed, so the cause decides.
func (e *PaymentError) IsProtocolError() bool {
	switch e.Kind {
	case KindGatewayProtocolError:
		return true
	case KindGatewayUnavailable:
		return false
	}
	switch e.Cause {
	case CauseNonJSON, CauseMalformedJSON, CauseMissingPaymentURL, CauseMissingResult, CauseMissingStatusFlag, CauseHTTPStatus, CauseOrderIDMismatch:
		return true
	}
	return false
}

// Retryable reports whether the caller may sensibly try the same call again.
func (e *PaymentError) Retryable() bool {
	return e.Kind == KindGatewayUnavailable
}

var (
	ErrInvalidInput         = &PaymentError{Kind: KindInvalidInput}
	ErrInvalidMobile        = &PaymentError{Kind: KindInvalidInput, Cause: CauseInvalidMobile}
	ErrNotConfigured        = &PaymentError{Kind: KindNotConfigured}
	ErrGatewayUnavailable   = &PaymentError{Kind: KindGatewayUnavailable}
	ErrGatewayProtocol      = &PaymentError{Kind: KindGatewayProtocolError}
	ErrOrderCreationFailed  = &PaymentError{Kind: KindOrderCreationFailed}
	ErrStatusCheckFailed    = &PaymentError{Kind: KindStatusCheckFailed}
	ErrVehicleNotFound      = errors.New("vehicle not found in any registry")
	ErrVehicleLookupBlocked = errors.New("vehicle lookup requires a confirmed payment")
)

// KindOf returns the kind of the first PaymentError in err's chain.
func KindOf(err error) ErrorKind {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// retryable reports whether err is a PaymentError worth repeating.
func retryable(err error) bool {
	var pe *PaymentError
	return errors.As(err, &pe) && pe.Retryable()
}

func newError(kind ErrorKind, cause, reason string, err error) *PaymentError {
	return &PaymentError{Kind: kind, Cause: cause, Reason: reason, Err: err}
}

func invalidInput(cause, format string, args ...any) *PaymentError {
	return newError(KindInvalidInput, cause, fmt.Sprintf(format, args...), nil)
}
