package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yeremiapane/rto-lookup/config"
	"github.com/yeremiapane/rto-lookup/models"
	"github.com/yeremiapane/rto-lookup/utils"
)

// VehicleService queries the vehicle registry, primary first then fallback.
type VehicleService struct {
	client      *resty.Client
	primaryURL  string
	fallbackURL string
}

func NewVehicleService(primaryURL, fallbackURL string, timeout time.Duration) *VehicleService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &VehicleService{
		client:      client,
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
	}
}

func NewVehicleServiceFromConfig(cfg *config.Config) *VehicleService {
	return NewVehicleService(cfg.VehiclePrimaryURL, cfg.VehicleFallbackURL, cfg.VehicleTimeout)
}

// Lookup returns the registry record for a vehicle number. ErrVehicleNotFound
// is returned when neither registry has it.
func (vs *VehicleService) Lookup(ctx context.Context, vehicleNumber string) (*models.VehicleLookupResult, error) {
	vehicleNumber = NormalizeVehicleNumber(vehicleNumber)
	if vehicleNumber == "" {
		return nil, invalidInput(CauseEmptyVehicle, "vehicle number is required")
	}

	log := utils.Info(logrus.Fields{"vehicle_number": vehicleNumber})

	raw, err := vs.fetch(ctx, vs.primaryURL, vehicleNumber)
	if err == nil && !isJSONObject(raw) {
		err = fmt.Errorf("primary registry returned a non-object body")
	}
	if err == nil {
		log.WithField("api_used", models.RegistryPrimary).Info("vehicle found")
		return newLookupResult(vehicleNumber, models.RegistryPrimary, raw), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	utils.Error(logrus.Fields{"vehicle_number": vehicleNumber}).Warnf("primary registry miss: %v", err)

	raw, err = vs.fetch(ctx, vs.fallbackURL, vehicleNumber)
	if err == nil {
		var body struct {
			Status        bool            `json:"status"`
			VaahanDetails json.RawMessage `json:"vaahan_details"`
		}
		if uerr := json.Unmarshal(raw, &body); uerr != nil {
			err = uerr
		} else if !body.Status || !isJSONObject(body.VaahanDetails) {
			err = fmt.Errorf("fallback registry has no vaahan_details")
		} else {
			log.WithField("api_used", models.RegistryFallback).Info("vehicle found")
			return newLookupResult(vehicleNumber, models.RegistryFallback, body.VaahanDetails), nil
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	utils.Error(logrus.Fields{"vehicle_number": vehicleNumber}).Warnf("fallback registry miss: %v", err)
	return nil, ErrVehicleNotFound
}

func (vs *VehicleService) fetch(ctx context.Context, url, vehicleNumber string) (json.RawMessage, error) {
	resp, err := vs.client.R().
		SetContext(ctx).
		SetQueryParam("regn_no", vehicleNumber).
		Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("registry returned %s", resp.Status())
	}
	body := bytes.TrimSpace(resp.Body())
	if !json.Valid(body) {
		return nil, fmt.Errorf("registry returned invalid JSON")
	}
	return json.RawMessage(body), nil
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func newLookupResult(vehicleNumber, apiUsed string, raw json.RawMessage) *models.VehicleLookupResult {
	result := &models.VehicleLookupResult{
		VehicleNumber: vehicleNumber,
		APIUsed:       apiUsed,
		Raw:           raw,
	}
	var record models.VehicleRecord
	if err := json.Unmarshal(raw, &record); err == nil {
		result.Record = &record
	} else {
		utils.Error(logrus.Fields{"vehicle_number": vehicleNumber}).Warnf("registry record has unexpected shape: %v", err)
	}
	result.Summary = result.Record.Summary()
	return result
}
