package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/rto-lookup/middlewares"
	"github.com/yeremiapane/rto-lookup/services"
	"github.com/yeremiapane/rto-lookup/utils"
)

type VehicleController struct {
	Lookups LookupFlow
}

func NewVehicleController(lookups LookupFlow) *VehicleController {
	return &VehicleController{Lookups: lookups}
}

// LookupVehicle -> paid registry lookup, gated by UnlockAuthMiddleware
func (vc *VehicleController) LookupVehicle(c *gin.Context) {
	claims, ok := middlewares.UnlockClaims(c)
	if !ok {
		respondServiceError(c, services.ErrVehicleLookupBlocked)
		return
	}

	result, err := vc.Lookups.LookupPaid(c.Request.Context(), claims)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Vehicle details retrieved successfully", result)
}
