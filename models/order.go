package models

import (
	"fmt"
	"time"
)

// LookupFeeMinorUnits is the fixed fee for one vehicle lookup, in paise (₹50).
const LookupFeeMinorUnits int64 = 5000

// Order is one payment attempt for one vehicle lookup. It is created once by
// the gateway service and never mutated afterwards.
type Order struct {
	OrderID          string    `json:"orderId"`
	VehicleNumber    string    `json:"vehicleNumber"`
	CustomerMobile   string    `json:"-"`
	AmountMinorUnits int64     `json:"amountMinorUnits"`
	PaymentURL       string    `json:"paymentUrl"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AmountRupees returns the amount as the whole-rupee string the gateway expects.
func (o *Order) AmountRupees() string {
	return fmt.Sprintf("%d", o.AmountMinorUnits/100)
}
