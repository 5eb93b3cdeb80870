package models

import "encoding/json"

// Registry tiers reported in VehicleLookupResult.APIUsed.
const (
	RegistryPrimary  = "primary"
	RegistryFallback = "fallback"
)

type Address struct {
	AddressLine string `json:"address_line,omitempty"`
	Pincode     int    `json:"pincode,omitempty"`
}

// VehicleRecord is the subset of the registry payload the service reads.
// Everything else stays available in VehicleLookupResult.Raw.
type VehicleRecord struct {
	CustomerDetails *struct {
		FullName             string   `json:"full_name,omitempty"`
		CommunicationAddress *Address `json:"communication_address,omitempty"`
	} `json:"customer_details,omitempty"`
	VehicleDetails *struct {
		RegistrationNo   string   `json:"registration_no,omitempty"`
		EngineNo         string   `json:"engine_no,omitempty"`
		ChassisNo        string   `json:"chassis_no,omitempty"`
		RegistrationDate string   `json:"registration_date,omitempty"`
		ManufactureDate  string   `json:"manufacture_date,omitempty"`
		VehicleColor     string   `json:"vehicle_color,omitempty"`
		VehicleType      string   `json:"vehicle_type,omitempty"`
		IsFinanced       bool     `json:"is_vehicle_financed,omitempty"`
		RegistrationAddr *Address `json:"registration_address,omitempty"`
	} `json:"vehicle_details,omitempty"`
	MetaData *struct {
		SignzyResponse *struct {
			Result *RegistryResult `json:"result,omitempty"`
		} `json:"signzy_response,omitempty"`
	} `json:"meta_data,omitempty"`
	PreviousPolicyExpDate string `json:"previous_policy_exp_date,omitempty"`
	PreviousPolicyNumber  string `json:"previous_policy_number,omitempty"`
	IsCommercial          bool   `json:"is_commercial,omitempty"`
	IsTwoWheeler          bool   `json:"is_two_wheeler,omitempty"`
	IsFourWheeler         bool   `json:"is_four_wheeler,omitempty"`
}

type RegistryResult struct {
	Class                 string `json:"class,omitempty"`
	Manufacturer          string `json:"vehicleManufacturerName,omitempty"`
	Model                 string `json:"model,omitempty"`
	Type                  string `json:"type,omitempty"`
	NormsType             string `json:"normsType,omitempty"`
	BodyType              string `json:"bodyType,omitempty"`
	OwnerCount            string `json:"ownerCount,omitempty"`
	Status                string `json:"status,omitempty"`
	InsuranceCompany      string `json:"vehicleInsuranceCompanyName,omitempty"`
	InsuranceUpto         string `json:"vehicleInsuranceUpto,omitempty"`
	InsurancePolicyNumber string `json:"vehicleInsurancePolicyNumber,omitempty"`
	Financer              string `json:"rcFinancer,omitempty"`
	CubicCapacity         string `json:"vehicleCubicCapacity,omitempty"`
	GrossVehicleWeight    string `json:"grossVehicleWeight,omitempty"`
	SeatCapacity          string `json:"vehicleSeatCapacity,omitempty"`
	PuccUpto              string `json:"puccUpto,omitempty"`
	RTOCode               string `json:"rtoCode,omitempty"`
}

// Summary is the short card shown once a lookup succeeds.
type Summary struct {
	RegistrationNo string `json:"registrationNo"`
	Owner          string `json:"owner"`
	Model          string `json:"model"`
	Manufacturer   string `json:"manufacturer,omitempty"`
	InsuranceUpto  string `json:"insuranceUpto,omitempty"`
}

// Summary extracts the headline fields, using "N/A" for anything missing.
func (r *VehicleRecord) Summary() Summary {
	s := Summary{RegistrationNo: "N/A", Owner: "N/A", Model: "N/A"}
	if r == nil {
		return s
	}
	if r.VehicleDetails != nil && r.VehicleDetails.RegistrationNo != "" {
		s.RegistrationNo = r.VehicleDetails.RegistrationNo
	}
	if r.CustomerDetails != nil && r.CustomerDetails.FullName != "" {
		s.Owner = r.CustomerDetails.FullName
	}
	if r.MetaData != nil && r.MetaData.SignzyResponse != nil && r.MetaData.SignzyResponse.Result != nil {
		res := r.MetaData.SignzyResponse.Result
		if res.Model != "" {
			s.Model = res.Model
		}
		s.Manufacturer = res.Manufacturer
		s.InsuranceUpto = res.InsuranceUpto
	}
	return s
}

// VehicleLookupResult is what the registry collaborator returns on a hit.
type VehicleLookupResult struct {
	VehicleNumber string          `json:"vehicleNumber"`
	APIUsed       string          `json:"apiUsed"`
	Record        *VehicleRecord  `json:"-"`
	Summary       Summary         `json:"summary"`
	Raw           json.RawMessage `json:"data"`
}
