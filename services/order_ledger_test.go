package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeremiapane/rto-lookup/models"
)

func TestOrderLedger_RecordsOnlyGatewayTerminalStates(t *testing.T) {
	ledger := NewOrderLedger(time.Hour)

	tests := []struct {
		name   string
		status models.PaymentStatus
		want   bool
	}{
		{name: "pending", status: models.PaymentStatus{OrderID: "A", Classification: models.ClassificationPending}, want: false},
		{name: "successful", status: models.PaymentStatus{OrderID: "B", Classification: models.ClassificationSuccessful, UTR: "U"}, want: true},
		{name: "vendor declined", status: models.PaymentStatus{OrderID: "C", Classification: models.ClassificationFailed, FailureKind: FailureVendorDeclined}, want: true},
		{name: "timeout", status: models.PaymentStatus{OrderID: "D", Classification: models.ClassificationFailed, FailureKind: string(KindTimeout)}, want: false},
		{name: "protocol", status: models.PaymentStatus{OrderID: "E", Classification: models.ClassificationFailed, FailureKind: string(KindGatewayProtocolError)}, want: false},
		{name: "no order id", status: models.PaymentStatus{Classification: models.ClassificationSuccessful}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.Record(tt.status))
			_, ok := ledger.Lookup(tt.status.OrderID)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestOrderLedger_FirstTerminalStateWins(t *testing.T) {
	ledger := NewOrderLedger(time.Hour)

	assert.True(t, ledger.Record(models.PaymentStatus{OrderID: "A", Classification: models.ClassificationSuccessful, UTR: "U1"}))
	assert.False(t, ledger.Record(models.PaymentStatus{OrderID: "A", Classification: models.ClassificationFailed, FailureKind: FailureVendorDeclined}))

	st, ok := ledger.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "U1", st.UTR)
}

func TestOrderLedger_ExpiryAndSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewOrderLedger(2 * time.Hour)
	ledger.now = func() time.Time { return now }

	ledger.Record(models.PaymentStatus{OrderID: "A", Classification: models.ClassificationSuccessful, UTR: "U1"})
	now = now.Add(time.Hour)
	ledger.Record(models.PaymentStatus{OrderID: "B", Classification: models.ClassificationSuccessful, UTR: "U2"})

	now = now.Add(90 * time.Minute)
	_, ok := ledger.Lookup("A")
	assert.False(t, ok, "expired entry is not returned")
	_, ok = ledger.Lookup("B")
	assert.True(t, ok)

	assert.Equal(t, 1, ledger.Sweep())
	assert.Equal(t, 1, ledger.Len())
}

func TestOrderLedger_StartStop(t *testing.T) {
	ledger := NewOrderLedger(time.Millisecond)
	ledger.interval = time.Millisecond
	ledger.Record(models.PaymentStatus{OrderID: "A", Classification: models.ClassificationSuccessful, UTR: "U1"})

	ledger.Start()
	assert.Eventually(t, func() bool { return ledger.Len() == 0 }, time.Second, 5*time.Millisecond)
	ledger.Stop()
	ledger.Stop()
}
