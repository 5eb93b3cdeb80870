package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/rto-lookup/services"
	"github.com/yeremiapane/rto-lookup/utils"
)

// httpStatusFor maps service errors onto response codes.
func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrVehicleLookupBlocked):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var pe *services.PaymentError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch pe.Kind {
	case services.KindInvalidInput:
		return http.StatusBadRequest
	case services.KindNotConfigured:
		return http.StatusInternalServerError
	case services.KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	case services.KindGatewayProtocolError:
		return http.StatusBadGateway
	case services.KindOrderCreationFailed:
		if pe.Cause == services.CauseRejected {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case services.KindStatusCheckFailed:
		return http.StatusBadRequest
	case services.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorBody is the kind, cause and user-facing message of a service error.
func errorBody(err error) (kind, cause, message string) {
	var pe *services.PaymentError
	switch {
	case errors.As(err, &pe):
		message = pe.Reason
		if message == "" {
			message = string(pe.Kind)
		}
		return string(pe.Kind), pe.Cause, message
	case errors.Is(err, services.ErrVehicleNotFound):
		return "vehicle_not_found", "", "Vehicle not found. Please check the vehicle number and try again."
	case errors.Is(err, services.ErrVehicleLookupBlocked):
		return "payment_required", "", "A confirmed payment is required for this lookup"
	case errors.Is(err, context.DeadlineExceeded):
		return string(services.KindTimeout), "", "The request took too long"
	}
	return "internal", "", "Internal server error"
}

func respondServiceError(c *gin.Context, err error) {
	code := httpStatusFor(err)
	kind, cause, message := errorBody(err)
	if code >= http.StatusInternalServerError {
		utils.Error(logrus.Fields{"path": c.FullPath(), "kind": kind, "cause": cause}).Errorf("request failed: %v", err)
	}
	c.Error(err)
	utils.RespondKindError(c, code, kind, cause, message)
}
